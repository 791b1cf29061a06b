package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostfound/apiserver/internal/query"
	"github.com/lostfound/apiserver/types"
)

func newTestStore(t *testing.T, path string) *SnapshotStore {
	t.Helper()
	s, err := OpenSnapshotStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.db.Close() })
	return s
}

func sampleItem(id string, itemType types.ItemType, name string, createdAt int64) types.Item {
	return types.Item{
		ID:        id,
		Type:      itemType,
		ItemName:  name,
		Location:  "Library",
		Contact:   "5551234567",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestInitializeCreatesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "lost_found.db")
	newTestStore(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "lost_found.db"))

	url := "/uploads/x1.png"
	item := sampleItem("x1", types.ItemTypeLost, "Blue Backpack", 1000)
	item.Description = "navy, two straps"
	item.ImageURL = &url
	require.NoError(t, s.InsertItem(ctx, item))

	got, err := s.GetItem(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, item, got)

	_, err = s.GetItem(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMutationsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lost_found.db")

	first := newTestStore(t, path)
	require.NoError(t, first.InsertItem(ctx, sampleItem("a", types.ItemTypeLost, "Umbrella", 1)))
	require.NoError(t, first.InsertItem(ctx, sampleItem("b", types.ItemTypeFound, "Keys", 2)))
	require.NoError(t, first.UpdateDescription(ctx, "a", "black, folding", 5))
	require.NoError(t, first.DeleteItem(ctx, "b"))

	second := newTestStore(t, path)
	items, err := second.ListItems(ctx, query.Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "black, folding", items[0].Description)
	assert.Equal(t, int64(5), items[0].UpdatedAt)
	assert.Equal(t, int64(1), items[0].CreatedAt)
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "lost_found.db"))

	assert.ErrorIs(t, s.UpdateDescription(ctx, "nope", "x", 1), ErrNotFound)
	assert.ErrorIs(t, s.DeleteItem(ctx, "nope"), ErrNotFound)
}

func TestDuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "lost_found.db"))

	require.NoError(t, s.InsertItem(ctx, sampleItem("dup", types.ItemTypeLost, "Hat", 1)))
	assert.Error(t, s.InsertItem(ctx, sampleItem("dup", types.ItemTypeFound, "Scarf", 2)))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "lost_found.db"))

	fixtures := []types.Item{
		sampleItem("1", types.ItemTypeLost, "Blue Backpack", 10),
		sampleItem("2", types.ItemTypeFound, "Silver Watch", 20),
		sampleItem("3", types.ItemTypeLost, "Student ID", 30),
		sampleItem("4", types.ItemTypeFound, "100% wool scarf", 40),
		sampleItem("5", types.ItemTypeFound, "ÉCHARPE Rouge", 50),
	}
	fixtures[2].Description = "Found near the BACKPACK rack"
	fixtures[1].Location = "Gym"
	for _, item := range fixtures {
		require.NoError(t, s.InsertItem(ctx, item))
	}

	ids := func(items []types.Item) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter query.Filter
		want   []string
	}{
		{"all newest first", query.Filter{}, []string{"5", "4", "3", "2", "1"}},
		{"lost only", query.Filter{Type: types.ItemTypeLost}, []string{"3", "1"}},
		{"found only", query.Filter{Type: types.ItemTypeFound}, []string{"5", "4", "2"}},
		{"search folds non-ASCII case", query.Filter{Search: "écharpe"}, []string{"5"}},
		{"search folds non-ASCII term", query.Filter{Search: "ÉCHARPE ROUGE"}, []string{"5"}},
		{"search name and description, case-insensitive", query.Filter{Search: "backpack"}, []string{"3", "1"}},
		{"search location", query.Filter{Search: "gym"}, []string{"2"}},
		{"search plus type", query.Filter{Type: types.ItemTypeFound, Search: "backpack"}, []string{}},
		{"percent is literal", query.Filter{Search: "0%"}, []string{"4"}},
		{"underscore is literal", query.Filter{Search: "_"}, []string{}},
		{"limit", query.Filter{Limit: 2}, []string{"5", "4"}},
		{"offset", query.Filter{Limit: 2, Offset: 4}, []string{"1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := s.ListItems(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(items))
			for _, item := range items {
				assert.True(t, tt.filter.Matches(item))
			}
		})
	}
}

func TestFlushFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "lost_found.db")
	s := newTestStore(t, path)

	// A directory squatting on the temp path makes the next flush fail.
	require.NoError(t, os.Mkdir(path+".tmp", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path+".tmp", "keep"), nil, 0o600))

	err := s.InsertItem(ctx, sampleItem("m", types.ItemTypeLost, "Mug", 1))
	require.ErrorIs(t, err, ErrNotPersisted)

	_, err = s.GetItem(ctx, "m")
	assert.NoError(t, err)
}
