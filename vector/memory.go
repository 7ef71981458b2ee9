package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore implements Store with plain in-process maps. It is suitable
// for tests and single-process deployments where the cache does not need to
// survive restarts.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[uint64]Entry
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]map[uint64]Entry),
	}
}

// EnsureNamespace creates the namespace if it doesn't exist.
func (m *MemoryStore) EnsureNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.namespaces[namespace]; !ok {
		m.namespaces[namespace] = make(map[uint64]Entry)
	}
	return nil
}

// DeleteNamespace drops the namespace and all entries in it.
func (m *MemoryStore) DeleteNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.namespaces, namespace)
	return nil
}

// Upsert stores entries by id, overwriting existing ids.
func (m *MemoryStore) Upsert(_ context.Context, namespace string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return fmt.Errorf("namespace %q does not exist", namespace)
	}

	for _, e := range entries {
		ns[e.ID] = e
	}
	return nil
}

// Search computes cosine similarity against every entry in the namespace.
func (m *MemoryStore) Search(_ context.Context, namespace string, vector []float64, opts SearchOptions) ([]Candidate, error) {
	if opts.Limit <= 0 {
		opts.Limit = 1
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return nil, fmt.Errorf("namespace %q does not exist", namespace)
	}

	candidates := make([]Candidate, 0, len(ns))
	for _, e := range ns {
		score := cosineSimilarity(vector, e.Vector)
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:      e.ID,
			Score:   score,
			Payload: e.Payload,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}
	return candidates, nil
}

// Scroll pages through the namespace in ascending id order. The cursor is
// the decimal id to resume from.
func (m *MemoryStore) Scroll(_ context.Context, namespace string, cursor string, limit int) ([]StoredEntry, string, error) {
	if limit <= 0 {
		limit = 100
	}

	var from uint64
	if cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		from = parsed
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return nil, "", fmt.Errorf("namespace %q does not exist", namespace)
	}

	ids := make([]uint64, 0, len(ns))
	for id := range ns {
		if id >= from {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	next := ""
	if len(ids) > limit {
		next = strconv.FormatUint(ids[limit], 10)
		ids = ids[:limit]
	}

	entries := make([]StoredEntry, 0, len(ids))
	for _, id := range ids {
		e := ns[id]
		entries = append(entries, StoredEntry{ID: e.ID, Payload: e.Payload})
	}

	return entries, next, nil
}

// DeleteByIDs removes entries by id. Missing ids are ignored.
func (m *MemoryStore) DeleteByIDs(_ context.Context, namespace string, ids []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return fmt.Errorf("namespace %q does not exist", namespace)
	}

	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

// Ping reports healthy; the store has no external connection.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Count returns the number of entries in a namespace.
func (m *MemoryStore) Count(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
