package vectoradapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_StoreAndSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Store(ctx, "proj1", "character", map[string]any{
		"name": "Mira", "psychology": "guarded, lost her crew in a storm",
	}))
	require.NoError(t, store.Store(ctx, "proj1", "character", map[string]any{
		"name": "Dax", "psychology": "cheerful accountant who loves spreadsheets",
	}))

	results, err := store.Search(ctx, "proj1", "character", "a guarded sailor who lost their crew", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Mira", results[0].Payload["name"])
	require.Greater(t, results[0].Score, results[1].Score)
}

func TestMemoryStore_SearchIsScopedByProjectAndKind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Store(ctx, "proj1", "character", map[string]any{"name": "Mira"}))
	require.NoError(t, store.Store(ctx, "proj2", "character", map[string]any{"name": "Other"}))
	require.NoError(t, store.Store(ctx, "proj1", "worldbuilding", map[string]any{"description": "harbor"}))

	results, err := store.Search(ctx, "proj1", "character", "Mira", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Mira", results[0].Payload["name"])
}

func TestMemoryStore_SearchRespectsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Store(ctx, "proj1", "scene", map[string]any{"title": "scene"}))
	}

	results, err := store.Search(ctx, "proj1", "scene", "scene", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestMemoryStore_Scroll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Store(ctx, "proj1", "scene", map[string]any{"title": "one"}))
	require.NoError(t, store.Store(ctx, "proj1", "scene", map[string]any{"title": "two"}))

	results, err := store.Scroll(ctx, "proj1", "scene", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "one", results[0].Payload["title"])
}

func TestMemoryStore_SearchOnEmptyBucket(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	results, err := store.Search(ctx, "proj1", "character", "anything", 5)
	require.NoError(t, err)
	require.Empty(t, results)
}
