package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedEmbedder memoizes embeddings in process memory so the same
// fingerprint is not embedded twice on a get-then-set round trip, and
// repeated queries skip the provider entirely.
type CachedEmbedder struct {
	inner Embedder
	local *gocache.Cache
}

// NewCachedEmbedder wraps an embedder with in-process memoization.
// Entries expire after ttl; a ttl of zero keeps them until eviction.
func NewCachedEmbedder(inner Embedder, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &CachedEmbedder{
		inner: inner,
		local: gocache.New(ttl, 10*time.Minute),
	}
}

// Embed returns a memoized embedding when available, otherwise delegates.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.memoKey(text)
	if v, ok := c.local.Get(key); ok {
		return v.([]float64), nil
	}

	emb, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.local.SetDefault(key, emb)
	return emb, nil
}

// EmbedBatch embeds only the texts not already memoized.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	results := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int

	for i, t := range texts {
		if v, ok := c.local.Get(c.memoKey(t)); ok {
			results[i] = v.([]float64)
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, idx := range missingIdx {
		if j < len(fresh) {
			results[idx] = fresh[j]
			c.local.SetDefault(c.memoKey(missing[j]), fresh[j])
		}
	}

	return results, nil
}

// Model returns the underlying model name.
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Dimension returns the underlying embedding dimension.
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// memoKey scopes the memo to the model so switching models never reuses
// stale vectors.
func (c *CachedEmbedder) memoKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Model() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
