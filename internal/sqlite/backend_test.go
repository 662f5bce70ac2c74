package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

func openTemp(t *testing.T, opts ...Option) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, dir
}

func jsonlLines(t *testing.T, dir, resource string) []string {
	t.Helper()
	data, err := os.ReadFile(jsonlPath(dir, resource))
	require.NoError(t, err)
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestOpenEmpty(t *testing.T) {
	b, dir := openTemp(t)
	ctx := context.Background()

	for _, resource := range types.StandardResources {
		got, err := b.List(ctx, resource)
		require.NoError(t, err, resource)
		assert.Empty(t, got, resource)
	}
	_, err := os.Stat(filepath.Join(dir, dbFile))
	assert.NoError(t, err)
}

func TestCreateAssignsUUIDAndPersists(t *testing.T) {
	b, dir := openTemp(t)
	ctx := context.Background()

	rec, err := b.Create(ctx, types.ResourceCategories, types.Record{"id": "client-chosen", "name": "Lighting"})
	require.NoError(t, err)

	id := rec.ID("id")
	assert.NotEqual(t, "client-chosen", id)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	lines := jsonlLines(t, dir, types.ResourceCategories)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], id)
	assert.Contains(t, lines[0], "Lighting")
}

func TestListKeepsCreationOrder(t *testing.T) {
	b, _ := openTemp(t)
	ctx := context.Background()
	for _, name := range []string{"c", "a", "b"} {
		_, err := b.Create(ctx, types.ResourceUsers, types.Record{"name": name})
		require.NoError(t, err)
	}

	got, err := b.List(ctx, types.ResourceUsers)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []any{"c", "a", "b"}, []any{got[0]["name"], got[1]["name"], got[2]["name"]})
}

func TestUpdateMergesAndKeepsID(t *testing.T) {
	b, dir := openTemp(t)
	ctx := context.Background()
	rec, err := b.Create(ctx, types.ResourceUsers, types.Record{"name": "X", "email": "x@example.com"})
	require.NoError(t, err)
	id := rec.ID("id")

	updated, err := b.Update(ctx, types.ResourceUsers, id, types.Record{"name": "Y", "id": "other"})
	require.NoError(t, err)
	assert.Equal(t, "Y", updated["name"])
	assert.Equal(t, "x@example.com", updated["email"])
	assert.Equal(t, id, updated.ID("id"))

	got, err := b.Get(ctx, types.ResourceUsers, id)
	require.NoError(t, err)
	assert.Equal(t, "Y", got["name"])
	assert.Contains(t, jsonlLines(t, dir, types.ResourceUsers)[0], `"name":"Y"`)
}

func TestMissingRecords(t *testing.T) {
	b, _ := openTemp(t)
	ctx := context.Background()

	_, err := b.Get(ctx, types.ResourceUsers, "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.Update(ctx, types.ResourceUsers, "nope", types.Record{"name": "x"})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, types.ResourceUsers, "nope"), types.ErrNotFound)
}

func TestDeletePersists(t *testing.T) {
	b, dir := openTemp(t)
	ctx := context.Background()
	keep, err := b.Create(ctx, types.ResourceBanners, types.Record{"title": "keep"})
	require.NoError(t, err)
	gone, err := b.Create(ctx, types.ResourceBanners, types.Record{"title": "gone"})
	require.NoError(t, err)

	require.NoError(t, b.Delete(ctx, types.ResourceBanners, gone.ID("id")))

	lines := jsonlLines(t, dir, types.ResourceBanners)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], keep.ID("id"))
}

// blockJSONL replaces the JSONL file of resource with a directory so the
// next persist cannot rename over it.
func blockJSONL(t *testing.T, dir, resource string) {
	t.Helper()
	path := jsonlPath(dir, resource)
	require.NoError(t, os.RemoveAll(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "occupied"), 0o755))
}

func TestFailedPersistRollsBack(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		mutate func(b *Backend, id string) error
	}{
		{name: "create", mutate: func(b *Backend, _ string) error {
			_, err := b.Create(ctx, types.ResourceUsers, types.Record{"name": "New"})
			return err
		}},
		{name: "update", mutate: func(b *Backend, id string) error {
			_, err := b.Update(ctx, types.ResourceUsers, id, types.Record{"name": "Changed"})
			return err
		}},
		{name: "delete", mutate: func(b *Backend, id string) error {
			return b.Delete(ctx, types.ResourceUsers, id)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, dir := openTemp(t)
			rec, err := b.Create(ctx, types.ResourceUsers, types.Record{"name": "X"})
			require.NoError(t, err)
			id := rec.ID("id")

			blockJSONL(t, dir, types.ResourceUsers)
			require.Error(t, tt.mutate(b, id))

			got, err := b.List(ctx, types.ResourceUsers)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, id, got[0].ID("id"))
			assert.Equal(t, "X", got[0]["name"])
		})
	}
}

func TestUnknownResource(t *testing.T) {
	b, _ := openTemp(t, WithResources(types.ResourceBanners))
	ctx := context.Background()

	_, err := b.List(ctx, types.ResourceUsers)
	assert.ErrorIs(t, err, types.ErrUnknownResource)
	_, err = b.Create(ctx, "widgets", types.Record{})
	assert.ErrorIs(t, err, types.ErrUnknownResource)
	assert.Equal(t, []string{types.ResourceBanners}, b.Resources())
}

func TestReopenLoadsJSONL(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(dir)
	require.NoError(t, err)
	rec, err := b.Create(ctx, types.ResourceTestimonials, types.Record{"name": "Ada", "rating": 5})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = Open(dir)
	require.NoError(t, err)
	defer b.Close()
	got, err := b.Get(ctx, types.ResourceTestimonials, rec.ID("id"))
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["name"])
	assert.Equal(t, 5.0, got["rating"])
}

func TestLoadHandWrittenJSONL(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		`{"id":1,"title":"first"}`,
		`{broken`,
		`{"title":"no id"}`,
		`{"id":1,"title":"duplicate"}`,
	}, "\n")
	require.NoError(t, os.WriteFile(jsonlPath(dir, types.ResourceBanners), []byte(content), 0o644))

	b, err := Open(dir)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.List(context.Background(), types.ResourceBanners)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0]["title"])
	assert.Equal(t, "1", got[0].ID("id"))
	assert.Equal(t, "no id", got[1]["title"])
	assert.NotEmpty(t, got[1].ID("id"))
}

func TestSampleData(t *testing.T) {
	b, dir := openTemp(t, WithSampleData())
	ctx := context.Background()

	for resource, samples := range sampleCatalogue {
		got, err := b.List(ctx, resource)
		require.NoError(t, err)
		assert.Len(t, got, len(samples), resource)
		assert.Len(t, jsonlLines(t, dir, resource), len(samples), resource)
	}

	// A second open with data present does not seed again.
	require.NoError(t, b.Close())
	again, err := Open(dir, WithSampleData())
	require.NoError(t, err)
	defer again.Close()
	got, err := again.List(ctx, types.ResourceCategories)
	require.NoError(t, err)
	assert.Len(t, got, len(sampleCatalogue[types.ResourceCategories]))
}

func TestClosedBackend(t *testing.T) {
	b, _ := openTemp(t)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.List(context.Background(), types.ResourceUsers)
	assert.ErrorIs(t, err, ErrDetached)
}
