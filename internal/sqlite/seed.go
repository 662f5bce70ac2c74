package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// sampleCatalogue is written on first open when seeding is enabled, so a
// fresh development backend has something to list.
var sampleCatalogue = map[string][]types.Record{
	types.ResourceCategories: {
		{"name": "Furniture", "image": "/img/furniture.jpg", "subCategory": []any{"Chairs", "Tables"}, "status": types.StatusActive},
		{"name": "Lighting", "image": "/img/lighting.jpg", "subCategory": []any{"Lamps"}, "status": types.StatusActive},
	},
	types.ResourceProducts: {
		{"name": "Oak Chair", "price": 120.0, "stock": 14.0, "category": "Furniture", "subCategory": "Chairs", "sku": "OAK-CH-01", "status": types.StatusActive, "colors": []any{"natural"}, "materials": []any{"oak"}},
		{"name": "Brass Lamp", "price": 75.5, "stock": 3.0, "category": "Lighting", "subCategory": "Lamps", "sku": "BR-LP-02", "status": types.StatusInactive},
	},
	types.ResourceBanners: {
		{"title": "Summer Sale", "subtitle": "Up to 40% off", "image": "/img/summer.jpg", "link": "/sale", "status": types.StatusActive, "position": 1.0},
	},
	types.ResourceTestimonials: {
		{"name": "Ada", "role": "Interior designer", "content": "Great quality.", "rating": 5.0, "status": types.StatusActive},
	},
	types.ResourceUsers: {
		{"name": "Admin", "email": "admin@example.com", "role": "admin", "status": types.StatusActive},
	},
	types.ResourceOrders: {
		{"customer": "Ada", "items": 2.0, "total": 240.0, "status": "pending", "paymentMethod": "card", "date": "2026-01-15"},
	},
	types.ResourceWhyChooseUs: {
		{"title": "Free shipping", "description": "On every order over $50", "icon": "truck", "status": types.StatusActive, "order": 1.0},
	},
}

// seedSampleCatalogue inserts the sample catalogue when the records table is
// empty and returns the resources it touched.
func seedSampleCatalogue(db *sql.DB, resources []string, now time.Time) ([]string, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	if count > 0 {
		return nil, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	stamp := now.UTC().Format(time.RFC3339)
	var seeded []string
	for _, resource := range resources {
		samples := sampleCatalogue[resource]
		for i, sample := range samples {
			rec := sample.Clone()
			rec[types.DefaultIDKey] = generateID()
			body, err := json.Marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("encoding %s sample: %w", resource, err)
			}
			if _, err := tx.Exec(`INSERT INTO records (resource, id, seq, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
				resource, rec.ID(types.DefaultIDKey), i+1, string(body), stamp, stamp); err != nil {
				return nil, fmt.Errorf("seeding %s: %w", resource, err)
			}
		}
		if len(samples) > 0 {
			seeded = append(seeded, resource)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing seed transaction: %w", err)
	}
	return seeded, nil
}
