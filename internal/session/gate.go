package session

import (
	"context"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Deleter removes a record. *store.Store satisfies it.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// Gate is the two-step delete: a request names the victim, and only an
// explicit confirmation deletes it. Each confirmation issues exactly one
// Delete; a cancellation issues none.
type Gate struct {
	pending string
}

// Pending returns the id awaiting confirmation and whether there is one.
func (g *Gate) Pending() (string, bool) {
	return g.pending, g.pending != ""
}

// Request moves the gate from idle to awaiting confirmation for id.
// Returns ErrInvalidID for an empty id and ErrGateBusy if another deletion is
// already awaiting confirmation.
func (g *Gate) Request(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if g.pending != "" {
		return types.ErrGateBusy
	}
	g.pending = id
	return nil
}

// Confirm deletes the pending record through d and returns the gate to idle,
// whether or not the delete succeeded. Returns ErrGateIdle without calling d
// when nothing is pending.
func (g *Gate) Confirm(ctx context.Context, d Deleter) (string, error) {
	id, err := g.Take()
	if err != nil {
		return "", err
	}
	return id, d.Delete(ctx, id)
}

// Take returns the pending id and moves the gate back to idle. The caller
// owes exactly one Delete of that id. Returns ErrGateIdle when nothing is
// pending.
func (g *Gate) Take() (string, error) {
	id := g.pending
	if id == "" {
		return "", types.ErrGateIdle
	}
	g.pending = ""
	return id, nil
}

// Cancel discards the pending id without contacting the backend. Idempotent.
func (g *Gate) Cancel() {
	g.pending = ""
}
