// Package storetest provides an in-memory Backend for tests, with call
// counting, injected failures and an optional gate to hold calls in flight.
package storetest

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Call records one backend invocation.
type Call struct {
	Op       string
	Resource string
	ID       string
	Fields   types.Record
}

// Fake implements types.Backend over process memory. Identifiers are
// assigned sequentially as JSON numbers, like a typical REST backend.
type Fake struct {
	mu     sync.Mutex
	data   map[string][]types.Record
	nextID int
	calls  []Call
	fail   map[string]error

	// EchoUpdates makes Update return the stored record; otherwise it
	// returns nil like a backend that acknowledges with an empty body.
	EchoUpdates bool

	// Hold, when set, blocks every call until a value is received from it.
	Hold chan struct{}
	// Entered receives a value when a call starts, before Hold.
	Entered chan string
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{
		data:        make(map[string][]types.Record),
		fail:        make(map[string]error),
		nextID:      1,
		EchoUpdates: true,
	}
}

// Seed appends records to resource, assigning ids to those without one.
func (f *Fake) Seed(resource string, records ...types.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		r = r.Clone()
		if r.ID(types.DefaultIDKey) == "" {
			r[types.DefaultIDKey] = float64(f.nextID)
			f.nextID++
		} else if n, ok := types.NumericValue(r[types.DefaultIDKey]); ok && int(n) >= f.nextID {
			f.nextID = int(n) + 1
		}
		f.data[resource] = append(f.data[resource], r)
	}
}

// FailNext makes the next call of op ("list", "create", "update", "delete")
// return err instead of touching the data.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many calls of op were made.
func (f *Fake) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Snapshot returns the stored records of resource.
func (f *Fake) Snapshot(resource string) []types.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Record, len(f.data[resource]))
	for i, r := range f.data[resource] {
		out[i] = r.Clone()
	}
	return out
}

func (f *Fake) enter(ctx context.Context, c Call) error {
	if f.Entered != nil {
		f.Entered <- c.Op
	}
	if f.Hold != nil {
		select {
		case <-f.Hold:
		case <-ctx.Done():
			return &types.NetworkError{Op: c.Op, Err: ctx.Err()}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if err, ok := f.fail[c.Op]; ok {
		delete(f.fail, c.Op)
		return err
	}
	return nil
}

func (f *Fake) List(ctx context.Context, resource string) ([]types.Record, error) {
	if err := f.enter(ctx, Call{Op: "list", Resource: resource}); err != nil {
		return nil, err
	}
	return f.Snapshot(resource), nil
}

func (f *Fake) Create(ctx context.Context, resource string, fields types.Record) (types.Record, error) {
	if err := f.enter(ctx, Call{Op: "create", Resource: resource, Fields: fields.Clone()}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := fields.Clone()
	r[types.DefaultIDKey] = float64(f.nextID)
	f.nextID++
	f.data[resource] = append(f.data[resource], r)
	return types.Record{types.DefaultIDKey: r[types.DefaultIDKey]}, nil
}

func (f *Fake) Update(ctx context.Context, resource, id string, fields types.Record) (types.Record, error) {
	if err := f.enter(ctx, Call{Op: "update", Resource: resource, ID: id, Fields: fields.Clone()}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.data[resource] {
		if r.ID(types.DefaultIDKey) == id {
			merged := r.Merge(fields)
			merged[types.DefaultIDKey] = r[types.DefaultIDKey]
			f.data[resource][i] = merged
			if f.EchoUpdates {
				return merged.Clone(), nil
			}
			return nil, nil
		}
	}
	return nil, notFound(resource, id)
}

func (f *Fake) Delete(ctx context.Context, resource, id string) error {
	if err := f.enter(ctx, Call{Op: "delete", Resource: resource, ID: id}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := f.data[resource]
	for i, r := range rs {
		if r.ID(types.DefaultIDKey) == id {
			f.data[resource] = append(rs[:i:i], rs[i+1:]...)
			return nil
		}
	}
	return notFound(resource, id)
}

func notFound(resource, id string) error {
	return &types.BackendError{Status: http.StatusNotFound, Message: resource + " " + strconv.Quote(id) + " not found"}
}
