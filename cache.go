package semcache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/reviewloop/semcache/embedding"
	"github.com/reviewloop/semcache/internal/metrics"
	"github.com/reviewloop/semcache/internal/observability"
	"github.com/reviewloop/semcache/vector"
)

// payloadSchemaVersion tags stored envelopes so a future format change can
// reject entries written by older code instead of misreading them.
const payloadSchemaVersion = 1

// payloadEnvelope wraps the caller's opaque payload for storage.
type payloadEnvelope struct {
	Version int    `json:"v"`
	Data    []byte `json:"data"`
}

// Cache is a semantic cache over one namespace of a vector index.
//
// Get and Set are safe for concurrent use and never fail: every internal
// error degrades to a miss or a dropped write, because the cache is an
// optimization layer and must not become a point of failure for the
// pipeline it accelerates. Only construction validates fatally.
type Cache struct {
	namespace     string
	embedder      embedding.Embedder
	store         vector.Store
	rule          AcceptanceRule
	maxCandidates int
	estSavings    time.Duration
	logger        *observability.Logger
	stats         Stats

	// threshold holds float64 bits so it can be retuned at runtime.
	threshold atomic.Uint64

	// mu serializes Clear against in-flight lookups: drop+recreate is two
	// index calls, and a Get between them would observe a half-cleared
	// namespace.
	mu sync.RWMutex
}

// CacheOptions configures a single cache namespace.
type CacheOptions struct {
	// Namespace is the isolated vector index partition this cache owns.
	Namespace string

	// Rule is the acceptance rule applied to similarity candidates.
	// Defaults to LenientRule.
	Rule AcceptanceRule

	// SimilarityThreshold is the minimum cosine similarity for a candidate.
	// Must be in (0, 1].
	SimilarityThreshold float64

	// MaxCandidates bounds how many candidates are verified per lookup.
	// Defaults to 1.
	MaxCandidates int

	// EstimatedSavings is the assumed cost of the computation a hit skips,
	// used for the time-saved statistic.
	EstimatedSavings time.Duration

	// Logger receives cache events. Defaults to a no-op logger.
	Logger *observability.Logger
}

// NewCache creates a cache over its namespace, creating the namespace in
// the index if needed. Configuration and index reachability problems are
// fatal here, never later.
func NewCache(ctx context.Context, embedder embedding.Embedder, store vector.Store, opts CacheOptions) (*Cache, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if opts.SimilarityThreshold <= 0 || opts.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in (0, 1], got %v", opts.SimilarityThreshold)
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 1
	}
	if opts.Rule == nil {
		opts.Rule = LenientRule{}
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}

	if err := store.EnsureNamespace(ctx, opts.Namespace); err != nil {
		return nil, fmt.Errorf("ensure namespace %q: %w", opts.Namespace, err)
	}

	c := &Cache{
		namespace:     opts.Namespace,
		embedder:      embedder,
		store:         store,
		rule:          opts.Rule,
		maxCandidates: opts.MaxCandidates,
		estSavings:    opts.EstimatedSavings,
		logger: opts.Logger.WithFields(
			"cache", opts.Namespace,
			"rule", opts.Rule.Name(),
		),
	}
	c.threshold.Store(math.Float64bits(opts.SimilarityThreshold))

	c.logger.Info("semantic cache ready",
		"threshold", opts.SimilarityThreshold,
		"max_candidates", opts.MaxCandidates,
		"model", embedder.Model(),
		"dimension", embedder.Dimension(),
	)

	return c, nil
}

// Lookup describes a confirmed cache hit.
type Lookup struct {
	// Payload is the cached opaque payload exactly as it was written.
	Payload []byte

	// Similarity is the cosine similarity of the accepted candidate.
	Similarity float64

	// Rank is the candidate's 1-based position among the search results.
	Rank int

	// CreatedAt is when the entry was written.
	CreatedAt time.Time
}

// Get looks up key material in the cache. It embeds the fingerprint,
// searches for candidates above the threshold, and applies the acceptance
// rule in descending similarity order. Failures anywhere on that path are
// logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key Key) (*Lookup, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := time.Now()
	c.stats.recordQuery()
	defer func() {
		metrics.LookupLatency.WithLabelValues(c.namespace).Observe(time.Since(start).Seconds())
	}()

	emb, err := c.embedder.Embed(ctx, key.Fingerprint())
	if err != nil {
		c.degrade(NewEmbeddingError(c.namespace, "get", err))
		return nil, false
	}

	candidates, err := c.store.Search(ctx, c.namespace, emb, vector.SearchOptions{
		Limit:    c.maxCandidates,
		MinScore: c.Threshold(),
	})
	if err != nil {
		c.degrade(NewIndexError(c.namespace, "get", err))
		return nil, false
	}

	if len(candidates) == 0 {
		c.miss("no candidates above threshold")
		return nil, false
	}

	for i, cand := range candidates {
		if !c.rule.Accept(key, cand) {
			continue
		}

		payload, err := c.unwrap(cand.Payload.Data)
		if err != nil {
			c.degrade(NewSerializationError(c.namespace, "get", err))
			return nil, false
		}

		saved := c.estSavings - time.Since(start)
		c.stats.recordHit(saved)
		metrics.LookupsTotal.WithLabelValues(c.namespace, "hit").Inc()
		if saved > 0 {
			metrics.TimeSavedSeconds.WithLabelValues(c.namespace).Add(saved.Seconds())
		}

		c.logger.Debug("cache hit",
			"similarity", cand.Score,
			"candidate_rank", fmt.Sprintf("%d/%d", i+1, len(candidates)),
		)

		return &Lookup{
			Payload:    payload,
			Similarity: cand.Score,
			Rank:       i + 1,
			CreatedAt:  time.Unix(cand.Payload.CreatedAt, 0),
		}, true
	}

	// Candidates cleared the threshold but none passed verification.
	c.stats.recordFalseCandidates(len(candidates))
	metrics.FalseCandidatesTotal.WithLabelValues(c.namespace).Add(float64(len(candidates)))
	c.miss(fmt.Sprintf("%d candidates rejected by %s rule", len(candidates), c.rule.Name()))
	return nil, false
}

// Set stores the payload for the key. The id is derived from the key's
// digest, so setting the same key twice overwrites one logical entry.
// Failures are logged and swallowed: the caller already holds the freshly
// computed payload, so a lost cache write is invisible.
func (c *Cache) Set(ctx context.Context, key Key, payload []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := json.Marshal(payloadEnvelope{
		Version: payloadSchemaVersion,
		Data:    payload,
	})
	if err != nil {
		c.warn(NewSerializationError(c.namespace, "set", err))
		return
	}

	emb, err := c.embedder.Embed(ctx, key.Fingerprint())
	if err != nil {
		c.warn(NewEmbeddingError(c.namespace, "set", err))
		return
	}

	entry := vector.Entry{
		ID:     key.ID(),
		Vector: emb,
	}
	key.annotate(&entry.Payload)
	entry.Payload.Data = data
	entry.Payload.CreatedAt = time.Now().Unix()

	if err := c.store.Upsert(ctx, c.namespace, []vector.Entry{entry}); err != nil {
		c.warn(NewIndexError(c.namespace, "set", err))
		return
	}

	c.logger.Debug("cache write",
		"id", entry.ID,
		"content_length", entry.Payload.ContentLength,
	)
}

// Clear drops and recreates the namespace, then resets statistics. It holds
// the write lock for the whole drop+recreate window, so concurrent lookups
// observe either the fully-old or the fully-new namespace.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.DeleteNamespace(ctx, c.namespace); err != nil {
		return NewIndexError(c.namespace, "clear", err)
	}
	if err := c.store.EnsureNamespace(ctx, c.namespace); err != nil {
		return NewIndexError(c.namespace, "clear", err)
	}

	c.stats.reset()
	c.logger.Info("cache cleared")
	return nil
}

// Stats returns a snapshot of this cache's counters.
func (c *Cache) Stats() Snapshot {
	return c.stats.snapshot(c.namespace)
}

// Namespace returns the vector index namespace this cache owns.
func (c *Cache) Namespace() string {
	return c.namespace
}

// Threshold returns the current similarity threshold.
func (c *Cache) Threshold() float64 {
	return math.Float64frombits(c.threshold.Load())
}

// SetThreshold retunes the similarity threshold at runtime. Invalid values
// are rejected so a bad config reload cannot disable verification.
func (c *Cache) SetThreshold(t float64) error {
	if t <= 0 || t > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %v", t)
	}
	c.threshold.Store(math.Float64bits(t))
	c.logger.Info("similarity threshold updated", "threshold", t)
	return nil
}

func (c *Cache) unwrap(data []byte) ([]byte, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}
	if env.Version != payloadSchemaVersion {
		return nil, fmt.Errorf("unsupported payload schema version %d", env.Version)
	}
	return env.Data, nil
}

func (c *Cache) miss(reason string) {
	c.stats.recordMiss()
	metrics.LookupsTotal.WithLabelValues(c.namespace, "miss").Inc()
	c.logger.Debug("cache miss", "reason", reason)
}

// degrade records an errored lookup as a miss.
func (c *Cache) degrade(err *CacheError) {
	c.stats.recordErroredMiss()
	metrics.LookupsTotal.WithLabelValues(c.namespace, "miss").Inc()
	metrics.DegradedTotal.WithLabelValues(c.namespace, err.Kind).Inc()
	c.logEvent(err, "cache degraded to miss")
}

// warn records a dropped cache write.
func (c *Cache) warn(err *CacheError) {
	metrics.DegradedTotal.WithLabelValues(c.namespace, err.Kind).Inc()
	c.logEvent(err, "cache write dropped")
}

// logEvent picks severity by retryability: a transient outage clears on its
// own, while a non-retryable failure means stored data cannot round-trip
// and needs attention.
func (c *Cache) logEvent(err *CacheError, msg string) {
	if err.Retryable {
		c.logger.Warn(msg, "kind", err.Kind, "error", err.Err)
		return
	}
	c.logger.Error(msg, "kind", err.Kind, "error", err.Err)
}
