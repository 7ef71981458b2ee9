package vector

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureNamespace(ctx, "ns"))

	entries := []Entry{
		{ID: 1, Vector: []float64{1, 0, 0}, Payload: Payload{Digest: "a"}},
		{ID: 2, Vector: []float64{0.9, 0.1, 0}, Payload: Payload{Digest: "b"}},
		{ID: 3, Vector: []float64{0, 1, 0}, Payload: Payload{Digest: "c"}},
	}
	require.NoError(t, store.Upsert(ctx, "ns", entries))

	t.Run("orders candidates by descending similarity", func(t *testing.T) {
		got, err := store.Search(ctx, "ns", []float64{1, 0, 0}, SearchOptions{Limit: 3})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, uint64(1), got[0].ID)
		assert.Equal(t, uint64(2), got[1].ID)
		assert.Equal(t, uint64(3), got[2].ID)
		assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	})

	t.Run("filters below min score", func(t *testing.T) {
		got, err := store.Search(ctx, "ns", []float64{1, 0, 0}, SearchOptions{Limit: 3, MinScore: 0.95})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].Payload.Digest)
		assert.Equal(t, "b", got[1].Payload.Digest)
	})

	t.Run("truncates to limit", func(t *testing.T) {
		got, err := store.Search(ctx, "ns", []float64{1, 0, 0}, SearchOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, uint64(1), got[0].ID)
	})

	t.Run("unknown namespace errors", func(t *testing.T) {
		_, err := store.Search(ctx, "missing", []float64{1, 0, 0}, SearchOptions{Limit: 1})
		assert.Error(t, err)
	})
}

func TestMemoryStoreUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureNamespace(ctx, "ns"))

	require.NoError(t, store.Upsert(ctx, "ns", []Entry{{ID: 7, Vector: []float64{1, 0}, Payload: Payload{Tag: "old"}}}))
	require.NoError(t, store.Upsert(ctx, "ns", []Entry{{ID: 7, Vector: []float64{1, 0}, Payload: Payload{Tag: "new"}}}))

	assert.Equal(t, 1, store.Count("ns"))
	got, err := store.Search(ctx, "ns", []float64{1, 0}, SearchOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Payload.Tag)
}

func TestMemoryStoreScroll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureNamespace(ctx, "ns"))

	var entries []Entry
	for i := 1; i <= 25; i++ {
		entries = append(entries, Entry{
			ID:      uint64(i),
			Vector:  []float64{1, 0},
			Payload: Payload{Digest: fmt.Sprintf("d%d", i)},
		})
	}
	require.NoError(t, store.Upsert(ctx, "ns", entries))

	seen := make(map[uint64]bool)
	cursor := ""
	pages := 0
	for {
		page, next, err := store.Scroll(ctx, "ns", cursor, 10)
		require.NoError(t, err)
		pages++
		var last uint64
		for _, e := range page {
			assert.Greater(t, e.ID, last, "page must be in ascending id order")
			last = e.ID
			seen[e.ID] = true
		}
		if next == "" {
			break
		}
		cursor = next
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 25)
}

func TestMemoryStoreScrollBadCursor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureNamespace(ctx, "ns"))

	_, _, err := store.Scroll(ctx, "ns", "not-a-number", 10)
	assert.Error(t, err)
}

func TestMemoryStoreDeleteByIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureNamespace(ctx, "ns"))
	require.NoError(t, store.Upsert(ctx, "ns", []Entry{
		{ID: 1, Vector: []float64{1, 0}},
		{ID: 2, Vector: []float64{0, 1}},
	}))

	require.NoError(t, store.DeleteByIDs(ctx, "ns", []uint64{1, 99}))
	assert.Equal(t, 1, store.Count("ns"))
}

func TestMemoryStoreNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureNamespace(ctx, "a"))
	require.NoError(t, store.EnsureNamespace(ctx, "b"))

	require.NoError(t, store.Upsert(ctx, "a", []Entry{{ID: 1, Vector: []float64{1, 0}}}))

	got, err := store.Search(ctx, "b", []float64{1, 0}, SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.DeleteNamespace(ctx, "a"))
	_, err = store.Search(ctx, "a", []float64{1, 0}, SearchOptions{Limit: 1})
	assert.Error(t, err)

	require.NoError(t, store.EnsureNamespace(ctx, "a"))
	assert.Equal(t, 0, store.Count("a"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}
