package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/shelf/internal/store"
	"github.com/mesh-intelligence/shelf/internal/store/storetest"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

func setupUsers(t *testing.T) (*store.Store, *storetest.Fake, types.Schema) {
	t.Helper()
	schema, err := types.LookupSchema(types.ResourceUsers)
	require.NoError(t, err)
	fake := storetest.NewFake()
	fake.Seed(types.ResourceUsers, types.Record{"id": float64(5), "name": "X", "email": "x@example.com", "role": "user", "status": "active"})
	s := store.New(fake, schema)
	require.NoError(t, s.Load(context.Background()))
	return s, fake, schema
}

func TestFormOpenUsesDefaults(t *testing.T) {
	_, _, schema := setupUsers(t)
	f := NewForm(schema)
	assert.Equal(t, Closed, f.Mode())
	assert.Nil(t, f.Draft())

	require.NoError(t, f.Open())
	assert.Equal(t, Creating, f.Mode())
	assert.Equal(t, "user", f.Draft()["role"])
	assert.Equal(t, "active", f.Draft()["status"])
	assert.Empty(t, f.TargetID())

	assert.ErrorIs(t, f.Open(), types.ErrSessionActive)
}

func TestFormEditCancelLeavesCollection(t *testing.T) {
	s, fake, schema := setupUsers(t)
	f := NewForm(schema)

	rec, ok := s.Get("5")
	require.True(t, ok)
	require.NoError(t, f.Edit(rec))
	assert.Equal(t, Editing, f.Mode())
	assert.Equal(t, "5", f.TargetID())

	require.NoError(t, f.Set("name", "Y"))
	assert.Equal(t, "Y", f.Draft()["name"])

	f.Cancel()
	assert.Equal(t, Closed, f.Mode())
	assert.Nil(t, f.Draft())

	got, _ := s.Get("5")
	assert.Equal(t, "X", got["name"], "cancel must not touch the collection")
	assert.Zero(t, fake.Count("update"))
}

func TestFormDraftIsNotTheRecord(t *testing.T) {
	_, _, schema := setupUsers(t)
	rec := types.Record{"id": "7", "name": "X", "tags": []any{"a"}}
	f := NewForm(schema)
	require.NoError(t, f.Edit(rec))

	require.NoError(t, f.Set("name", "Y"))
	d := f.Draft()
	d["tags"].([]any)[0] = "b"

	assert.Equal(t, "X", rec["name"])
	assert.Equal(t, "a", rec["tags"].([]any)[0])
	assert.Equal(t, "a", f.Draft()["tags"].([]any)[0], "Draft returns a copy")
}

func TestFormEditRequiresID(t *testing.T) {
	_, _, schema := setupUsers(t)
	f := NewForm(schema)
	assert.ErrorIs(t, f.Edit(types.Record{"name": "no id"}), types.ErrInvalidID)
	assert.Equal(t, Closed, f.Mode())
}

func TestFormClosedRejectsEdits(t *testing.T) {
	_, _, schema := setupUsers(t)
	f := NewForm(schema)
	assert.ErrorIs(t, f.Set("name", "x"), types.ErrNoSession)
	assert.ErrorIs(t, f.Apply(types.Record{"name": "x"}), types.ErrNoSession)
	_, err := f.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrNoSession)
}

func TestFormReadOnlyResource(t *testing.T) {
	orders, err := types.LookupSchema(types.ResourceOrders)
	require.NoError(t, err)
	f := NewForm(orders)
	assert.ErrorIs(t, f.Open(), types.ErrNotSupported)
	assert.ErrorIs(t, f.Edit(types.Record{"id": 1}), types.ErrNotSupported)
}

func TestFormSubmitCreate(t *testing.T) {
	s, fake, schema := setupUsers(t)
	f := NewForm(schema)
	require.NoError(t, f.Open())
	require.NoError(t, f.Apply(types.Record{"name": "Grace", "email": "grace@example.com"}))

	stored, err := f.Submit(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, Closed, f.Mode())
	assert.Nil(t, f.Draft())
	assert.Equal(t, 1, fake.Count("create"))
	got, ok := s.Get(stored.ID("id"))
	require.True(t, ok)
	assert.Equal(t, "Grace", got["name"])
	assert.Equal(t, "user", got["role"])
}

func TestFormSubmitUpdate(t *testing.T) {
	s, fake, schema := setupUsers(t)
	f := NewForm(schema)
	rec, _ := s.Get("5")
	require.NoError(t, f.Edit(rec))
	require.NoError(t, f.Set("role", "admin"))

	_, err := f.Submit(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, Closed, f.Mode())
	calls := fake.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "update", last.Op)
	assert.Equal(t, "5", last.ID)
	got, _ := s.Get("5")
	assert.Equal(t, "admin", got["role"])
}

func TestFormSubmitValidationFailure(t *testing.T) {
	s, fake, schema := setupUsers(t)
	f := NewForm(schema)
	require.NoError(t, f.Open())
	require.NoError(t, f.Set("email", "nobody@example.com"))

	_, err := f.Submit(context.Background(), s)
	require.ErrorIs(t, err, types.ErrValidation)
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("name"))

	assert.Equal(t, Creating, f.Mode(), "session stays open")
	assert.Equal(t, "nobody@example.com", f.Draft()["email"], "draft is kept")
	assert.Zero(t, fake.Count("create"), "backend is not contacted")
}

func TestFormSubmitBackendFailureKeepsSession(t *testing.T) {
	s, fake, schema := setupUsers(t)
	f := NewForm(schema)
	require.NoError(t, f.Open())
	require.NoError(t, f.Apply(types.Record{"name": "Grace", "email": "grace@example.com"}))
	fake.FailNext("create", &types.BackendError{Status: 409, Message: "Email already taken"})

	_, err := f.Submit(context.Background(), s)
	require.ErrorIs(t, err, types.ErrBackend)
	assert.Equal(t, Creating, f.Mode())
	assert.Equal(t, 1, s.Len())

	// Retry succeeds.
	_, err = f.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestFormSubmitNormalizesNumbers(t *testing.T) {
	schema, err := types.LookupSchema(types.ResourceBanners)
	require.NoError(t, err)
	fake := storetest.NewFake()
	s := store.New(fake, schema)
	f := NewForm(schema)
	require.NoError(t, f.Open())
	require.NoError(t, f.Apply(types.Record{"title": "New Banner", "subtitle": "s", "link": "/x", "position": "2"}))

	stored, err := f.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 2, stored["position"])
}

func TestGateCancelIssuesNoDelete(t *testing.T) {
	s, fake, _ := setupUsers(t)
	var g Gate

	require.NoError(t, g.Request("7"))
	id, ok := g.Pending()
	assert.True(t, ok)
	assert.Equal(t, "7", id)

	g.Cancel()
	_, ok = g.Pending()
	assert.False(t, ok)
	assert.Zero(t, fake.Count("delete"))
	assert.Equal(t, 1, s.Len())
}

func TestGateConfirmDeletesOnce(t *testing.T) {
	s, fake, _ := setupUsers(t)
	var g Gate

	require.NoError(t, g.Request("5"))
	id, err := g.Confirm(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "5", id)
	assert.Equal(t, 1, fake.Count("delete"))
	assert.Zero(t, s.Len())

	_, err = g.Confirm(context.Background(), s)
	assert.ErrorIs(t, err, types.ErrGateIdle)
	assert.Equal(t, 1, fake.Count("delete"), "a second confirm must not delete again")
}

func TestGateConfirmFailureReturnsToIdle(t *testing.T) {
	s, fake, _ := setupUsers(t)
	var g Gate
	require.NoError(t, g.Request("99"))

	_, err := g.Confirm(context.Background(), s)
	require.ErrorIs(t, err, types.ErrNotFound)
	_, ok := g.Pending()
	assert.False(t, ok)
	assert.Equal(t, 1, fake.Count("delete"))
}

func TestGateRequestRules(t *testing.T) {
	var g Gate
	assert.ErrorIs(t, g.Request(""), types.ErrInvalidID)
	require.NoError(t, g.Request("1"))
	assert.ErrorIs(t, g.Request("2"), types.ErrGateBusy)
	id, _ := g.Pending()
	assert.Equal(t, "1", id)
}

func TestFormCompleteIgnoresReplacedSession(t *testing.T) {
	s, _, schema := setupUsers(t)
	f := NewForm(schema)
	rec, _ := s.Get("5")
	require.NoError(t, f.Edit(rec))

	sub, err := f.Prepare()
	require.NoError(t, err)
	assert.Equal(t, Editing, sub.Mode)
	assert.Equal(t, "5", sub.TargetID)

	f.Cancel()
	require.NoError(t, f.Open())
	_, err = sub.Send(context.Background(), s)
	require.NoError(t, err)

	f.Complete(sub)
	assert.Equal(t, Creating, f.Mode(), "a late completion does not close the newer session")

	require.NoError(t, f.Apply(types.Record{"name": "Z", "email": "z@example.com"}))
	next, err := f.Prepare()
	require.NoError(t, err)
	f.Complete(next)
	assert.Equal(t, Closed, f.Mode())
}

func TestGateTake(t *testing.T) {
	var g Gate
	_, err := g.Take()
	assert.ErrorIs(t, err, types.ErrGateIdle)

	require.NoError(t, g.Request("7"))
	id, err := g.Take()
	require.NoError(t, err)
	assert.Equal(t, "7", id)
	_, open := g.Pending()
	assert.False(t, open)
	require.NoError(t, g.Request("8"), "the gate accepts a new request once taken")
}
