package types

import "context"

// Backend is the remote collaborator holding the authoritative state of every
// resource. Implementations own transport, authentication, timeouts and
// retries; callers never retry.
type Backend interface {
	// List returns every record of the resource in backend order.
	List(ctx context.Context, resource string) ([]Record, error)

	// Create stores fields as a new record and returns it with the
	// identifier the backend assigned.
	Create(ctx context.Context, resource string, fields Record) (Record, error)

	// Update writes fields to the record identified by id. The returned
	// record is nil when the backend does not echo the stored state.
	// Returns an error matching ErrNotFound if no such record exists.
	Update(ctx context.Context, resource, id string, fields Record) (Record, error)

	// Delete removes the record identified by id.
	// Returns an error matching ErrNotFound if no such record exists.
	Delete(ctx context.Context, resource, id string) error
}
