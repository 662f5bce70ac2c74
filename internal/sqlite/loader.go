package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// loadAllJSONL reads the JSONL file of each resource in dataDir into the
// records table. Loading is transactional: either every file loads or the
// table stays empty. Malformed lines and lines whose id repeats an earlier
// line are skipped; a record without an id is given one.
func loadAllJSONL(db *sql.DB, dataDir string, resources []string, now time.Time) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO records (resource, id, seq, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	stamp := now.UTC().Format(time.RFC3339)
	for _, resource := range resources {
		lines, err := readJSONL(jsonlPath(dataDir, resource))
		if err != nil {
			return fmt.Errorf("reading %s: %w", resource, err)
		}
		for seq, line := range lines {
			var rec types.Record
			if err := json.Unmarshal(line, &rec); err != nil || rec == nil {
				continue
			}
			id := rec.ID(types.DefaultIDKey)
			if id == "" {
				id = generateID()
				rec[types.DefaultIDKey] = id
			}
			body, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if _, err := stmt.Exec(resource, id, seq+1, string(body), stamp, stamp); err != nil {
				return fmt.Errorf("loading %s %q: %w", resource, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}
