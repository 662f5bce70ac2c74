// Package admin drives one resource screen: it owns a Resource Store, a Form
// session, a deletion Gate and a listing Cursor, accepts the user's intents,
// and hands the resulting State to a Renderer after every transition.
package admin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mesh-intelligence/shelf/internal/listing"
	"github.com/mesh-intelligence/shelf/internal/session"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Collection is the resource store a Page drives. *store.Store satisfies it.
type Collection interface {
	session.Submitter
	session.Deleter
	Schema() types.Schema
	Load(ctx context.Context) error
	Get(id string) (types.Record, bool)
	Records() []types.Record
	Loaded() bool
	Close()
}

// Page is the controller for one resource screen. Intents are serialized;
// a mutating intent issued while another request is outstanding fails with
// ErrBusy and never reaches the backend.
type Page struct {
	store    Collection
	schema   types.Schema
	renderer Renderer
	logger   *zap.Logger

	// request is held for the duration of every backend-bound intent.
	request *semaphore.Weighted
	closed  atomic.Bool

	mu     sync.Mutex
	form   *session.Form
	gate   session.Gate
	cursor *listing.Cursor
	busy   bool
	notice *Notification
}

// Option configures a Page.
type Option func(*Page)

// WithLogger sets the page logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Page) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPage creates a page over store. A nil renderer discards states.
func NewPage(store Collection, renderer Renderer, opts ...Option) *Page {
	if renderer == nil {
		renderer = nopRenderer{}
	}
	schema := store.Schema()
	p := &Page{
		store:    store,
		schema:   schema,
		renderer: renderer,
		logger:   zap.NewNop(),
		request:  semaphore.NewWeighted(1),
		form:     session.NewForm(schema),
		cursor:   listing.NewCursor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("resource", schema.Name))
	return p
}

// Schema returns the resource schema.
func (p *Page) Schema() types.Schema { return p.schema }

// State returns the current state without emitting it.
func (p *Page) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// Load fetches the collection from the backend.
func (p *Page) Load(ctx context.Context) error {
	return p.remote(ctx, func(ctx context.Context) error {
		if err := p.store.Load(ctx); err != nil {
			p.withLock(func() { p.fail("Error loading "+strings.ToLower(p.schema.Plural), err) })
			return err
		}
		return nil
	})
}

// Add opens the form in create mode with default values.
func (p *Page) Add() error {
	return p.local(p.form.Open)
}

// Edit opens the form on a copy of the record identified by id.
func (p *Page) Edit(id string) error {
	return p.local(func() error {
		rec, ok := p.store.Get(id)
		if !ok {
			p.fail(p.schema.Singular+" not found", types.ErrNotFound)
			return types.ErrNotFound
		}
		return p.form.Edit(rec)
	})
}

// Set writes one draft field.
func (p *Page) Set(field string, value any) error {
	return p.local(func() error { return p.form.Set(field, value) })
}

// Apply writes every field of fields into the draft.
func (p *Page) Apply(fields types.Record) error {
	return p.local(func() error { return p.form.Apply(fields) })
}

// Cancel closes the form and discards the draft.
func (p *Page) Cancel() {
	_ = p.local(func() error {
		p.form.Cancel()
		return nil
	})
}

// Submit applies fields to the draft and submits it: a create in create
// mode, an update of the edited record in edit mode. On failure the form
// stays open; on success it closes. The form may be cancelled while the
// request is outstanding, in which case the result does not reopen it.
func (p *Page) Submit(ctx context.Context, fields types.Record) error {
	return p.remote(ctx, func(ctx context.Context) error {
		p.mu.Lock()
		sub, err := p.prepareLocked(fields)
		p.mu.Unlock()
		if errors.Is(err, types.ErrNoSession) {
			return err
		}

		doing, done := "creating", "created"
		if sub.Mode == session.Editing {
			doing, done = "updating", "updated"
		}
		var stored types.Record
		if err == nil {
			stored, err = sub.Send(ctx, p.store)
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.fail("Error "+doing+" "+strings.ToLower(p.schema.Singular), err)
			return err
		}
		p.form.Complete(sub)
		p.succeed(p.schema.Singular + " " + done + " successfully")
		p.logger.Info("record "+done, zap.String("id", stored.ID(p.schema.Key())))
		return nil
	})
}

func (p *Page) prepareLocked(fields types.Record) (session.Submission, error) {
	if len(fields) > 0 {
		if err := p.form.Apply(fields); err != nil {
			return session.Submission{}, err
		}
	}
	return p.form.Prepare()
}

// Delete asks for confirmation before deleting the record identified by id.
func (p *Page) Delete(id string) error {
	return p.local(func() error {
		if !p.schema.Deletable {
			return types.ErrNotSupported
		}
		return p.gate.Request(id)
	})
}

// ConfirmDelete deletes the record awaiting confirmation. Exactly one backend
// delete is issued per confirmation.
func (p *Page) ConfirmDelete(ctx context.Context) error {
	return p.remote(ctx, func(ctx context.Context) error {
		p.mu.Lock()
		id, err := p.gate.Take()
		p.mu.Unlock()
		if err != nil {
			return err
		}

		err = p.store.Delete(ctx, id)

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.fail("Error deleting "+strings.ToLower(p.schema.Singular), err)
			return err
		}
		p.succeed(p.schema.Singular + " deleted successfully")
		p.logger.Info("record deleted", zap.String("id", id))
		return nil
	})
}

// CancelDelete discards the pending deletion without contacting the backend.
func (p *Page) CancelDelete() {
	_ = p.local(func() error {
		p.gate.Cancel()
		return nil
	})
}

// ToggleStatus flips the status of the record identified by id between
// active and inactive.
func (p *Page) ToggleStatus(ctx context.Context, id string) error {
	return p.remote(ctx, func(ctx context.Context) error {
		rec, ok := p.store.Get(id)
		if !ok {
			p.withLock(func() { p.fail(p.schema.Singular+" not found", types.ErrNotFound) })
			return types.ErrNotFound
		}
		if _, ok := p.schema.Field("status"); !ok {
			return types.ErrNotSupported
		}
		next := types.StatusActive
		if rec["status"] == types.StatusActive {
			next = types.StatusInactive
		}
		if _, err := p.store.Update(ctx, id, types.Record{"status": next}); err != nil {
			p.withLock(func() { p.fail("Error changing status", err) })
			return err
		}
		p.withLock(func() { p.succeed(p.schema.Singular + " status changed to " + next) })
		return nil
	})
}

// Search sets the search term; a new term moves back to page 1.
func (p *Page) Search(term string) {
	_ = p.local(func() error {
		p.cursor.SetTerm(term)
		return nil
	})
}

// GoTo moves to page n.
func (p *Page) GoTo(n int) {
	_ = p.local(func() error {
		p.cursor.SetPage(n)
		return nil
	})
}

// NextPage moves one page forward.
func (p *Page) NextPage() {
	_ = p.local(func() error {
		p.cursor.Next()
		return nil
	})
}

// PrevPage moves one page back.
func (p *Page) PrevPage() {
	_ = p.local(func() error {
		p.cursor.Prev()
		return nil
	})
}

// Close tears the page down. A response still in flight is discarded and no
// further states are rendered.
func (p *Page) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.store.Close()
}

// local runs a transition that does not contact the backend. It never waits
// for an outstanding request.
func (p *Page) local(fn func() error) error {
	if p.closed.Load() {
		return types.ErrClosed
	}
	p.mu.Lock()
	p.notice = nil
	err := fn()
	s := p.stateLocked()
	p.mu.Unlock()
	p.render(s)
	return err
}

// remote runs a backend-bound transition. The page is marked busy and
// rendered before the request starts. fn runs without p.mu held and takes it
// itself around any page state it touches; the request semaphore keeps
// backend-bound intents one at a time.
func (p *Page) remote(ctx context.Context, fn func(context.Context) error) error {
	if p.closed.Load() {
		return types.ErrClosed
	}
	if !p.request.TryAcquire(1) {
		return types.ErrBusy
	}
	defer p.request.Release(1)

	p.mu.Lock()
	p.notice = nil
	p.busy = true
	s := p.stateLocked()
	p.mu.Unlock()
	p.render(s)

	err := fn(ctx)

	p.mu.Lock()
	p.busy = false
	s = p.stateLocked()
	p.mu.Unlock()
	if p.closed.Load() {
		return types.ErrClosed
	}
	p.render(s)
	return err
}

func (p *Page) withLock(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

func (p *Page) fail(title string, err error) {
	p.notice = &Notification{
		Level:   LevelError,
		Title:   title,
		Message: types.Message(err),
		Kind:    types.Kind(err),
	}
	p.logger.Warn(title, zap.Error(err))
}

func (p *Page) succeed(title string) {
	p.notice = &Notification{Level: LevelSuccess, Title: title}
}

// render hands s to the renderer without any page lock held, so a renderer
// may call back into the page.
func (p *Page) render(s State) {
	if p.closed.Load() {
		return
	}
	p.renderer.Render(s)
}

func (p *Page) stateLocked() State {
	records := p.store.Records()
	pending, open := p.gate.Pending()
	s := State{
		Resource: p.schema.Name,
		Loaded:   p.store.Loaded(),
		Records:  records,
		Listing:  p.cursor.Apply(records),
		Form: FormState{
			Mode:     p.form.Mode().String(),
			Draft:    p.form.Draft(),
			TargetID: p.form.TargetID(),
		},
		Gate: GateState{Open: open, PendingID: pending},
		Busy: p.busy,
	}
	if p.notice != nil {
		n := *p.notice
		s.Notice = &n
	}
	return s
}
