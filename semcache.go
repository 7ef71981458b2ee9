// Package semcache implements a hybrid embedding-based cache for a
// multi-agent document-review pipeline. It fronts two expensive operations:
// retrieval-guideline lookups keyed by short queries, and whole-document
// analysis results keyed by a document plus the set of analyzers that ran.
//
// Both share one engine: embed a bounded fingerprint of the key material,
// search an approximate-nearest-neighbor index for candidates above a
// similarity threshold, then verify candidates with a domain-specific
// acceptance rule. Document results use strict verification (exact content
// digest), query lookups use lenient matching (similarity plus a consumer
// tag), because short-text similarity saturates faster and paraphrases are
// the common case.
package semcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reviewloop/semcache/embedding"
	"github.com/reviewloop/semcache/internal/observability"
	"github.com/reviewloop/semcache/vector"
)

// Manager owns one cache namespace per logical consumer. It is created
// once at process start and passed by handle to every consumer; namespaces
// are created lazily on first use and never implicitly shared.
type Manager struct {
	embedder embedding.Embedder
	store    vector.Store
	logger   *observability.Logger

	mu     sync.Mutex
	cfg    Config
	caches map[string]*Cache
}

// NewManager validates the configuration, checks the index is reachable,
// and returns a manager ready to hand out caches. All validation is fatal
// here; nothing fails later.
func NewManager(ctx context.Context, embedder embedding.Embedder, store vector.Store, cfg Config, logger *observability.Logger) (*Manager, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = observability.Nop()
	}

	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("vector index unreachable: %w", err)
	}

	return &Manager{
		embedder: embedder,
		store:    store,
		logger:   logger,
		cfg:      cfg,
		caches:   make(map[string]*Cache),
	}, nil
}

// QueryCache returns the lenient query cache for an agent, creating its
// namespace on first use. Each agent gets its own namespace so clarity
// guidelines can never answer rigor queries.
func (m *Manager) QueryCache(ctx context.Context, agent string) (*Cache, error) {
	if agent == "" {
		return nil, fmt.Errorf("agent name is required")
	}

	namespace := agent + "-queries"
	return m.getOrCreate(ctx, namespace, CacheOptions{
		Namespace:           namespace,
		Rule:                LenientRule{},
		SimilarityThreshold: m.cfg.QueryCache.SimilarityThreshold,
		MaxCandidates:       m.cfg.QueryCache.MaxCandidates,
		EstimatedSavings:    m.cfg.QueryCache.EstimatedSavings,
		Logger:              m.logger,
	})
}

// ResultCache returns the whole-document result cache, creating its
// namespace on first use. Strict digest verification is the default; the
// config can relax it to similarity-only matching.
func (m *Manager) ResultCache(ctx context.Context) (*Cache, error) {
	var rule AcceptanceRule = StrictRule{}
	if !m.cfg.ResultCache.Strict {
		rule = LenientRule{}
	}

	return m.getOrCreate(ctx, m.cfg.ResultCache.Namespace, CacheOptions{
		Namespace:           m.cfg.ResultCache.Namespace,
		Rule:                rule,
		SimilarityThreshold: m.cfg.ResultCache.SimilarityThreshold,
		MaxCandidates:       m.cfg.ResultCache.MaxCandidates,
		EstimatedSavings:    m.cfg.ResultCache.EstimatedSavings,
		Logger:              m.logger,
	})
}

// ResultKey builds a document key for the result cache, stamping the
// configured fingerprint length so callers never have to carry it.
func (m *Manager) ResultKey(content string, agents []string) DocumentKey {
	m.mu.Lock()
	defer m.mu.Unlock()

	return DocumentKey{
		Content:           content,
		Agents:            agents,
		FingerprintLength: m.cfg.ResultCache.FingerprintLength,
	}
}

// ResultPruner builds the retention sweep for the result cache from the
// pruning section of the config. A zero retention means pruning is
// disabled and is reported as an error here rather than at run time.
func (m *Manager) ResultPruner() (*Pruner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return NewPruner(m.store, PrunerOptions{
		Namespace:     m.cfg.ResultCache.Namespace,
		Retention:     time.Duration(m.cfg.Pruning.RetentionDays) * 24 * time.Hour,
		PageSize:      m.cfg.Pruning.PageSize,
		RatePerSecond: m.cfg.Pruning.RatePerSecond,
		Logger:        m.logger,
	})
}

func (m *Manager) getOrCreate(ctx context.Context, namespace string, opts CacheOptions) (*Cache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[namespace]; ok {
		return c, nil
	}

	c, err := NewCache(ctx, m.embedder, m.store, opts)
	if err != nil {
		return nil, err
	}

	m.caches[namespace] = c
	return c, nil
}

// Stats returns the snapshot for one namespace.
func (m *Manager) Stats(namespace string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.caches[namespace]
	if !ok {
		return Snapshot{}, false
	}
	return c.Stats(), true
}

// StatsAll returns snapshots for every namespace created so far.
func (m *Manager) StatsAll() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(m.caches))
	for _, c := range m.caches {
		snapshots = append(snapshots, c.Stats())
	}
	return snapshots
}

// Clear drops and recreates one namespace. Unknown namespaces are an
// error: clearing a namespace that was never created is almost always a
// typo in an admin call.
func (m *Manager) Clear(ctx context.Context, namespace string) error {
	m.mu.Lock()
	c, ok := m.caches[namespace]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown cache namespace %q", namespace)
	}
	return c.Clear(ctx)
}

// ApplyConfig retunes thresholds on live caches after a config reload.
// Structural settings (namespaces, rules, candidate counts) are fixed at
// creation and ignored here.
func (m *Manager) ApplyConfig(cfg *Config) {
	if err := cfg.Validate(); err != nil {
		m.logger.Error("rejected config update", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = *cfg
	for namespace, c := range m.caches {
		threshold := cfg.QueryCache.SimilarityThreshold
		if namespace == cfg.ResultCache.Namespace {
			threshold = cfg.ResultCache.SimilarityThreshold
		}
		if err := c.SetThreshold(threshold); err != nil {
			m.logger.Error("threshold update failed", "cache", namespace, "error", err)
		}
	}
}

// Close releases the underlying vector store connection.
func (m *Manager) Close() error {
	return m.store.Close()
}
