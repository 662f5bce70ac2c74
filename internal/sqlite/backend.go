// Package sqlite is the storage engine behind the development backend. JSONL
// files in the data directory, one per resource, are the source of truth;
// SQLite is the query engine loaded from them on open. Every mutation runs in
// a transaction that commits only after the resource's JSONL file has been
// rewritten, so a failed persist leaves both unchanged.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// dbFile is the SQLite file name inside the data directory. It is rebuilt
// from the JSONL files on every open.
const dbFile = "shelf.db"

// ErrDetached is returned by operations on a closed backend.
var ErrDetached = errors.New("sqlite backend is closed")

// Backend implements types.Backend on SQLite with JSONL persistence.
type Backend struct {
	mu        sync.Mutex
	db        *sql.DB
	dataDir   string
	resources []string
	logger    *zap.Logger
	now       func() time.Time
	seed      bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithResources limits the backend to the named resources. The default is
// types.StandardResources.
func WithResources(names ...string) Option {
	return func(b *Backend) { b.resources = slices.Clone(names) }
}

// WithSampleData seeds a small sample catalogue when the data directory
// holds no records.
func WithSampleData() Option {
	return func(b *Backend) { b.seed = true }
}

// Open creates dataDir if needed, rebuilds the SQLite database from the JSONL
// files found there and returns a ready backend.
func Open(dataDir string, opts ...Option) (*Backend, error) {
	b := &Backend{
		dataDir:   dataDir,
		resources: slices.Clone(types.StandardResources),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.dataDir == "" {
		b.dataDir = "."
	}
	if err := os.MkdirAll(b.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(b.dataDir, dbFile)
	_ = os.Remove(dbPath)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	if err := loadAllJSONL(db, b.dataDir, b.resources, b.now()); err != nil {
		db.Close()
		return nil, fmt.Errorf("load JSONL: %w", err)
	}
	b.db = db

	if b.seed {
		seeded, err := seedSampleCatalogue(db, b.resources, b.now())
		if err != nil {
			db.Close()
			return nil, err
		}
		for _, resource := range seeded {
			if err := b.persist(context.Background(), db, resource); err != nil {
				db.Close()
				return nil, err
			}
		}
	}
	b.logger.Info("sqlite backend opened", zap.String("data_dir", b.dataDir), zap.Strings("resources", b.resources))
	return b, nil
}

// Close releases the database. Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// Resources returns the resource names the backend serves.
func (b *Backend) Resources() []string {
	return slices.Clone(b.resources)
}

// Has reports whether resource is served.
func (b *Backend) Has(resource string) bool {
	return slices.Contains(b.resources, resource)
}

// List returns every record of resource in creation order.
func (b *Backend) List(ctx context.Context, resource string) ([]types.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(resource); err != nil {
		return nil, err
	}
	return b.listLocked(ctx, resource)
}

// Get returns the record identified by id.
func (b *Backend) Get(ctx context.Context, resource, id string) (types.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(resource); err != nil {
		return nil, err
	}
	return b.getLocked(ctx, resource, id)
}

// Create stores fields under a new UUID v7 and returns the stored record.
// Any id in fields is replaced.
func (b *Backend) Create(ctx context.Context, resource string, fields types.Record) (types.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(resource); err != nil {
		return nil, err
	}

	rec := fields.Clone()
	if rec == nil {
		rec = types.Record{}
	}
	id := generateID()
	rec[types.DefaultIDKey] = id
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding %s record: %w", resource, err)
	}

	stamp := b.now().UTC().Format(time.RFC3339)
	err = b.writeLocked(ctx, resource, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (resource, id, seq, body, created_at, updated_at)
			 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE resource = ?), ?, ?, ?)`,
			resource, id, resource, string(body), stamp, stamp); err != nil {
			return fmt.Errorf("inserting %s record: %w", resource, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug("record created", zap.String("resource", resource), zap.String("id", id))
	return rec, nil
}

// Update merges fields into the record identified by id and returns the
// result. The id itself never changes.
func (b *Backend) Update(ctx context.Context, resource, id string, fields types.Record) (types.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(resource); err != nil {
		return nil, err
	}

	current, err := b.getLocked(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	merged := current.Merge(fields)
	merged[types.DefaultIDKey] = current[types.DefaultIDKey]
	body, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding %s record: %w", resource, err)
	}

	stamp := b.now().UTC().Format(time.RFC3339)
	err = b.writeLocked(ctx, resource, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET body = ?, updated_at = ? WHERE resource = ? AND id = ?`,
			string(body), stamp, resource, id); err != nil {
			return fmt.Errorf("updating %s record: %w", resource, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug("record updated", zap.String("resource", resource), zap.String("id", id))
	return merged, nil
}

// Delete removes the record identified by id.
func (b *Backend) Delete(ctx context.Context, resource, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(resource); err != nil {
		return err
	}

	err := b.writeLocked(ctx, resource, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE resource = ? AND id = ?`, resource, id)
		if err != nil {
			return fmt.Errorf("deleting %s record: %w", resource, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(resource, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.logger.Debug("record deleted", zap.String("resource", resource), zap.String("id", id))
	return nil
}

func (b *Backend) checkLocked(resource string) error {
	if b.db == nil {
		return ErrDetached
	}
	if !b.Has(resource) {
		return fmt.Errorf("%w: %s", types.ErrUnknownResource, resource)
	}
	return nil
}

func (b *Backend) listLocked(ctx context.Context, resource string) ([]types.Record, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT body FROM records WHERE resource = ? ORDER BY seq`, resource)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", resource, err)
	}
	defer rows.Close()

	out := []types.Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", resource, err)
		}
		var rec types.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("decoding %s record: %w", resource, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (b *Backend) getLocked(ctx context.Context, resource, id string) (types.Record, error) {
	var body string
	err := b.db.QueryRowContext(ctx, `SELECT body FROM records WHERE resource = ? AND id = ?`, resource, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(resource, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", resource, err)
	}
	var rec types.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("decoding %s record: %w", resource, err)
	}
	return rec, nil
}

// writeLocked runs write in a transaction, rewrites the JSONL file of
// resource from inside it and commits. Any failure rolls the write back.
func (b *Backend) writeLocked(ctx context.Context, resource string, write func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := write(tx); err != nil {
		return err
	}
	if err := b.persist(ctx, tx, resource); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", resource, err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// persist rewrites the JSONL file of resource from q.
func (b *Backend) persist(ctx context.Context, q queryer, resource string) error {
	rows, err := q.QueryContext(ctx, `SELECT body FROM records WHERE resource = ? ORDER BY seq`, resource)
	if err != nil {
		return fmt.Errorf("querying %s for persist: %w", resource, err)
	}
	defer rows.Close()

	var lines []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return fmt.Errorf("scanning %s for persist: %w", resource, err)
		}
		lines = append(lines, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := writeJSONL(jsonlPath(b.dataDir, resource), lines); err != nil {
		return fmt.Errorf("persisting %s: %w", resource, err)
	}
	return nil
}

func notFound(resource, id string) error {
	return fmt.Errorf("%s %q: %w", resource, id, types.ErrNotFound)
}

// generateID returns a new UUID v7, falling back to v4.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

var _ types.Backend = (*Backend)(nil)
