package semcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory index with defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Index.Kind = "memory"
		cfg.Embedding.APIKey = "test-key"

		m, err := NewFromConfig(ctx, cfg, nil)
		require.NoError(t, err)
		defer m.Close()

		c, err := m.ResultCache(ctx)
		require.NoError(t, err)
		assert.Equal(t, "review-results", c.Namespace())
		assert.Equal(t, 0.98, c.Threshold())
	})

	t.Run("missing embedding api key", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Index.Kind = "memory"

		_, err := NewFromConfig(ctx, cfg, nil)
		assert.Error(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.QueryCache.SimilarityThreshold = 2

		_, err := NewFromConfig(ctx, cfg, nil)
		assert.Error(t, err)
	})
}
