package semcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/semcache/vector"
)

func newTestManager(t *testing.T) (*Manager, *vector.MemoryStore) {
	t.Helper()

	store := vector.NewMemoryStore()
	m, err := NewManager(context.Background(), newStubEmbedder([]float64{1, 0, 0}), store, *DefaultConfig(), nil)
	require.NoError(t, err)

	return m, store
}

func TestNewManager(t *testing.T) {
	ctx := context.Background()
	embedder := newStubEmbedder([]float64{1, 0, 0})

	t.Run("should fail with invalid config", func(t *testing.T) {
		cfg := *DefaultConfig()
		cfg.QueryCache.SimilarityThreshold = 2

		_, err := NewManager(ctx, embedder, vector.NewMemoryStore(), cfg, nil)
		assert.Error(t, err)
	})

	t.Run("should fail when index is unreachable", func(t *testing.T) {
		store := &MockVectorStore{}
		store.On("Ping", ctx).Return(assert.AnError)

		_, err := NewManager(ctx, embedder, store, *DefaultConfig(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unreachable")
	})
}

func TestManagerNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	clarity, err := m.QueryCache(ctx, "clarity")
	require.NoError(t, err)
	rigor, err := m.QueryCache(ctx, "rigor")
	require.NoError(t, err)

	assert.Equal(t, "clarity-queries", clarity.Namespace())
	assert.Equal(t, "rigor-queries", rigor.Namespace())

	clarity.Set(ctx, QueryKey{Text: "how to simplify prose", Tag: "clarity"}, []byte("clarity guidelines"))

	// The rigor cache never sees clarity entries, even for identical text.
	_, ok := rigor.Get(ctx, QueryKey{Text: "how to simplify prose", Tag: "rigor"})
	assert.False(t, ok)

	_, ok = clarity.Get(ctx, QueryKey{Text: "how to simplify prose", Tag: "clarity"})
	assert.True(t, ok)
}

func TestManagerReturnsSameCache(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	a, err := m.QueryCache(ctx, "clarity")
	require.NoError(t, err)
	b, err := m.QueryCache(ctx, "clarity")
	require.NoError(t, err)

	assert.Same(t, a, b)
}

func TestManagerResultCache(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	rc, err := m.ResultCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, "review-results", rc.Namespace())
	assert.Equal(t, 0.98, rc.Threshold())

	doc := DocumentKey{Content: "\\documentclass{article} body", Agents: []string{"clarity", "rigor"}}
	rc.Set(ctx, doc, []byte(`{"summary":"ok"}`))

	lookup, ok := rc.Get(ctx, doc)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"summary":"ok"}`), lookup.Payload)
}

func TestManagerResultKey(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()

	cfg := *DefaultConfig()
	cfg.ResultCache.FingerprintLength = 10
	m, err := NewManager(ctx, newStubEmbedder([]float64{1, 0, 0}), store, cfg, nil)
	require.NoError(t, err)

	long := "abcdefghijklmnopqrstuvwxyz"
	key := m.ResultKey(long, []string{"rigor", "clarity"})

	assert.Equal(t, "abcdefghij", key.Fingerprint())
	// The digest still covers the full content, not just the fingerprint.
	assert.Equal(t, DocumentKey{Content: long, Agents: []string{"clarity", "rigor"}}.Digest(), key.Digest())
}

func TestManagerResultPruner(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("sweeps the result cache with the configured retention", func(t *testing.T) {
		store := vector.NewMemoryStore()
		cfg := *DefaultConfig()
		cfg.Pruning.RetentionDays = 3
		cfg.Pruning.PageSize = 20

		m, err := NewManager(ctx, newStubEmbedder([]float64{1, 0, 0}), store, cfg, nil)
		require.NoError(t, err)

		seedEntries(t, store, "review-results", 50, now.Add(-5*24*time.Hour), 1)
		seedEntries(t, store, "review-results", 7, now.Add(-time.Hour), 10_000)

		p, err := m.ResultPruner()
		require.NoError(t, err)

		report, err := p.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50, report.Deleted)
		assert.Equal(t, 7, store.Count("review-results"))
	})

	t.Run("zero retention is rejected at construction", func(t *testing.T) {
		cfg := *DefaultConfig()
		cfg.Pruning.RetentionDays = 0

		m, err := NewManager(ctx, newStubEmbedder([]float64{1, 0, 0}), vector.NewMemoryStore(), cfg, nil)
		require.NoError(t, err)

		_, err = m.ResultPruner()
		assert.Error(t, err)
	})
}

func TestManagerStats(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	c, err := m.QueryCache(ctx, "clarity")
	require.NoError(t, err)
	c.Get(ctx, QueryKey{Text: "q", Tag: "clarity"})

	snap, ok := m.Stats("clarity-queries")
	require.True(t, ok)
	assert.Equal(t, int64(1), snap.TotalQueries)

	_, ok = m.Stats("never-created")
	assert.False(t, ok)

	_, err = m.ResultCache(ctx)
	require.NoError(t, err)
	assert.Len(t, m.StatsAll(), 2)
}

func TestManagerClear(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	c, err := m.QueryCache(ctx, "clarity")
	require.NoError(t, err)
	c.Set(ctx, QueryKey{Text: "q", Tag: "clarity"}, []byte("v"))
	require.Equal(t, 1, store.Count("clarity-queries"))

	require.NoError(t, m.Clear(ctx, "clarity-queries"))
	assert.Equal(t, 0, store.Count("clarity-queries"))

	assert.Error(t, m.Clear(ctx, "never-created"))
}

func TestManagerApplyConfig(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	qc, err := m.QueryCache(ctx, "clarity")
	require.NoError(t, err)
	rc, err := m.ResultCache(ctx)
	require.NoError(t, err)

	cfg := *DefaultConfig()
	cfg.QueryCache.SimilarityThreshold = 0.95
	cfg.ResultCache.SimilarityThreshold = 0.99
	m.ApplyConfig(&cfg)

	assert.Equal(t, 0.95, qc.Threshold())
	assert.Equal(t, 0.99, rc.Threshold())

	// Invalid updates are rejected wholesale.
	bad := cfg
	bad.ResultCache.SimilarityThreshold = 5
	m.ApplyConfig(&bad)
	assert.Equal(t, 0.99, rc.Threshold())
}
