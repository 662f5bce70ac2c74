// Package session implements the two interaction state machines of an admin
// page: the Form, which owns a draft while a record is being created or
// edited, and the Gate, which holds a deletion until it is confirmed.
package session

import (
	"context"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Mode is the state of a Form.
type Mode int

// Form states.
const (
	Closed Mode = iota
	Creating
	Editing
)

func (m Mode) String() string {
	switch m {
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	default:
		return "closed"
	}
}

// Submitter persists a submitted draft. *store.Store satisfies it.
type Submitter interface {
	Create(ctx context.Context, draft types.Record) (types.Record, error)
	Update(ctx context.Context, id string, draft types.Record) (types.Record, error)
}

// Form tracks whether a create or edit is in progress, the draft field
// values, and which record is being edited. The draft is always a copy: edits
// never reach the collection until Submit succeeds.
type Form struct {
	schema   types.Schema
	mode     Mode
	draft    types.Record
	targetID string
	// seq identifies the current session; it changes on every Open and Edit.
	seq uint64
}

// Submission is a validated draft ready to be sent, detached from the Form
// so the backend call can run while the Form stays usable.
type Submission struct {
	Mode     Mode
	TargetID string
	Draft    types.Record
	seq      uint64
}

// NewForm returns a closed Form for the entity described by schema.
func NewForm(schema types.Schema) *Form {
	return &Form{schema: schema}
}

// Mode returns the current state.
func (f *Form) Mode() Mode { return f.mode }

// TargetID returns the id of the record being edited, or "".
func (f *Form) TargetID() string { return f.targetID }

// Draft returns a copy of the draft, or nil when closed.
func (f *Form) Draft() types.Record { return f.draft.Clone() }

// Open starts a create session with the schema's default values.
// Returns ErrSessionActive if a session is already open.
func (f *Form) Open() error {
	if f.mode != Closed {
		return types.ErrSessionActive
	}
	if !f.schema.Creatable {
		return types.ErrNotSupported
	}
	f.mode = Creating
	f.draft = f.schema.Defaults()
	f.targetID = ""
	f.seq++
	return nil
}

// Edit starts an edit session on a copy of record.
// Returns ErrSessionActive if a session is already open and ErrInvalidID if
// record has no identifier.
func (f *Form) Edit(record types.Record) error {
	if f.mode != Closed {
		return types.ErrSessionActive
	}
	if !f.schema.Editable {
		return types.ErrNotSupported
	}
	id := record.ID(f.schema.Key())
	if id == "" {
		return types.ErrInvalidID
	}
	draft := record.Clone()
	delete(draft, f.schema.Key())
	f.mode = Editing
	f.draft = draft
	f.targetID = id
	f.seq++
	return nil
}

// Set writes one draft field. Returns ErrNoSession when closed.
func (f *Form) Set(field string, value any) error {
	if f.mode == Closed {
		return types.ErrNoSession
	}
	f.draft = f.draft.Merge(types.Record{field: value})
	return nil
}

// Apply writes every field of fields into the draft.
// Returns ErrNoSession when closed.
func (f *Form) Apply(fields types.Record) error {
	if f.mode == Closed {
		return types.ErrNoSession
	}
	f.draft = f.draft.Merge(fields)
	return nil
}

// Cancel closes the session and discards the draft. Idempotent.
func (f *Form) Cancel() {
	f.mode = Closed
	f.draft = nil
	f.targetID = ""
}

// Submit validates the draft and hands it to s: Create when creating, Update
// on the target when editing. A validation failure never reaches s. On any
// failure the session stays open so the user can fix the draft or cancel;
// on success it closes and the stored record is returned.
func (f *Form) Submit(ctx context.Context, s Submitter) (types.Record, error) {
	sub, err := f.Prepare()
	if err != nil {
		return nil, err
	}
	stored, err := sub.Send(ctx, s)
	if err != nil {
		return nil, err
	}
	f.Complete(sub)
	return stored, nil
}

// Prepare normalizes and validates the draft and returns it as a Submission.
// Mode and TargetID are filled in even when validation fails.
// Returns ErrNoSession when closed.
func (f *Form) Prepare() (Submission, error) {
	if f.mode == Closed {
		return Submission{}, types.ErrNoSession
	}
	sub := Submission{Mode: f.mode, TargetID: f.targetID, seq: f.seq}
	draft := f.schema.Normalize(f.draft)
	if err := f.schema.Validate(draft); err != nil {
		return sub, err
	}
	f.draft = draft
	sub.Draft = draft.Clone()
	return sub, nil
}

// Send hands the submission to s: Create when it was prepared in create mode,
// Update of the target otherwise.
func (sub Submission) Send(ctx context.Context, s Submitter) (types.Record, error) {
	switch sub.Mode {
	case Creating:
		return s.Create(ctx, sub.Draft.Clone())
	case Editing:
		return s.Update(ctx, sub.TargetID, sub.Draft.Clone())
	default:
		return nil, types.ErrNoSession
	}
}

// Complete closes the session sub was prepared from. It does nothing when
// that session was cancelled or replaced in the meantime.
func (f *Form) Complete(sub Submission) {
	if f.mode != Closed && f.seq == sub.seq {
		f.Cancel()
	}
}
