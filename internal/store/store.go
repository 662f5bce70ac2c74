// Package store holds the in-memory collection of one resource and keeps it
// consistent with the backend. Local state changes only after the backend
// acknowledges a mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Store is the single source of truth for one resource's collection.
// At most one backend request per Store is in flight at a time.
type Store struct {
	backend types.Backend
	schema  types.Schema
	logger  *zap.Logger

	// inflight serializes backend calls.
	inflight *semaphore.Weighted

	mu      sync.RWMutex
	records []types.Record
	loaded  bool
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for per-operation debug logs.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty Store for the resource described by schema.
// Call Load to populate it.
func New(backend types.Backend, schema types.Schema, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		schema:   schema,
		logger:   zap.NewNop(),
		inflight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("resource", schema.Name))
	return s
}

// Schema returns the schema the store was created with.
func (s *Store) Schema() types.Schema {
	return s.schema
}

// Load replaces the collection with the backend's records, in backend order.
// On failure the previous collection is kept.
func (s *Store) Load(ctx context.Context) error {
	var fetched []types.Record
	err := s.call(ctx, "load", "", func(ctx context.Context) error {
		var err error
		fetched, err = s.backend.List(ctx, s.schema.Name)
		return err
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", s.schema.Name, err)
	}

	key := s.schema.Key()
	records := make([]types.Record, 0, len(fetched))
	index := make(map[string]int, len(fetched))
	for _, r := range fetched {
		id := r.ID(key)
		if i, dup := index[id]; dup && id != "" {
			records[i] = r.Clone()
			continue
		}
		index[id] = len(records)
		records = append(records, r.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrClosed
	}
	s.records = records
	s.loaded = true
	return nil
}

// Create sends draft to the backend and appends the stored record, carrying
// the backend-assigned identifier, to the collection.
func (s *Store) Create(ctx context.Context, draft types.Record) (types.Record, error) {
	if !s.schema.Creatable {
		return nil, fmt.Errorf("create %s: %w", s.schema.Name, types.ErrNotSupported)
	}
	key := s.schema.Key()
	fields := draft.Clone()
	delete(fields, key)

	var resp types.Record
	err := s.call(ctx, "create", "", func(ctx context.Context) error {
		var err error
		resp, err = s.backend.Create(ctx, s.schema.Name, fields)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", s.schema.Name, err)
	}

	id := resp.ID(key)
	if id == "" {
		return nil, fmt.Errorf("create %s: %w", s.schema.Name,
			&types.BackendError{Status: http.StatusOK, Message: "response missing " + key})
	}
	created := fields.Merge(resp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrClosed
	}
	if i := s.indexLocked(id); i >= 0 {
		s.records[i] = created
	} else {
		s.records = append(s.records, created)
	}
	return created.Clone(), nil
}

// Update sends draft for the record identified by id. On success the local
// record is merged with draft and then with the backend's response, if any.
// The identifier never changes.
func (s *Store) Update(ctx context.Context, id string, draft types.Record) (types.Record, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	if !s.schema.Editable {
		return nil, fmt.Errorf("update %s/%s: %w", s.schema.Name, id, types.ErrNotSupported)
	}
	key := s.schema.Key()
	if other := draft.ID(key); other != "" && other != id {
		return nil, &types.ValidationError{Fields: []types.FieldError{{Field: key, Reason: "cannot be changed"}}}
	}
	fields := draft.Clone()
	delete(fields, key)

	var resp types.Record
	err := s.call(ctx, "update", id, func(ctx context.Context) error {
		var err error
		resp, err = s.backend.Update(ctx, s.schema.Name, id, fields)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", s.schema.Name, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrClosed
	}
	i := s.indexLocked(id)
	var base types.Record
	if i >= 0 {
		base = s.records[i]
	}
	updated := base.Merge(fields)
	if resp != nil {
		delete(resp, key)
		updated = updated.Merge(resp)
	}
	updated[key] = idValue(base, key, id)

	if i >= 0 {
		s.records[i] = updated
	} else {
		s.records = append(s.records, updated)
	}
	return updated.Clone(), nil
}

// Delete removes the record identified by id from the backend and then from
// the collection.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if !s.schema.Deletable {
		return fmt.Errorf("delete %s/%s: %w", s.schema.Name, id, types.ErrNotSupported)
	}
	err := s.call(ctx, "delete", id, func(ctx context.Context) error {
		return s.backend.Delete(ctx, s.schema.Name, id)
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", s.schema.Name, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrClosed
	}
	if i := s.indexLocked(id); i >= 0 {
		s.records = append(s.records[:i:i], s.records[i+1:]...)
	}
	return nil
}

// Records returns a deep copy of the collection.
func (s *Store) Records() []types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Get returns a copy of the record identified by id.
func (s *Store) Get(id string) (types.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return nil, false
	}
	return s.records[i].Clone(), true
}

// Len returns the number of records in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Loaded reports whether a Load has succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Close discards the collection. Responses arriving after Close are not
// applied, and further operations return ErrClosed. Idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = nil
}

// call runs fn as the store's single in-flight backend request.
func (s *Store) call(ctx context.Context, op, id string, fn func(context.Context) error) error {
	if s.isClosed() {
		return types.ErrClosed
	}
	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return &types.NetworkError{Op: op, Err: err}
	}
	defer s.inflight.Release(1)

	start := time.Now()
	err := fn(ctx)
	fields := []zap.Field{
		zap.String("op", op),
		zap.Duration("duration", time.Since(start)),
	}
	if id != "" {
		fields = append(fields, zap.String("id", id))
	}
	if err != nil {
		s.logger.Debug("backend call failed", append(fields, zap.Error(err))...)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			var ne *types.NetworkError
			if !errors.As(err, &ne) {
				err = &types.NetworkError{Op: op, Err: err}
			}
		}
		return err
	}
	s.logger.Debug("backend call", fields...)
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	key := s.schema.Key()
	for i, r := range s.records {
		if r.ID(key) == id {
			return i
		}
	}
	return -1
}

// idValue keeps the identifier in the form the backend sent it (a JSON number
// stays a number) and falls back to the string id.
func idValue(base types.Record, key, id string) any {
	if base != nil {
		if v, ok := base[key]; ok && v != nil {
			return v
		}
	}
	return id
}
