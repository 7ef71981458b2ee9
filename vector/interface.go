// Package vector provides namespace-partitioned vector index interfaces
// and implementations backing the semantic cache.
package vector

import (
	"context"

	"github.com/goccy/go-json"
)

// Store defines the interface for vector index backends.
// A namespace is an isolated partition: entries in one namespace are never
// visible to searches in another.
type Store interface {
	// EnsureNamespace creates the namespace if it doesn't exist.
	EnsureNamespace(ctx context.Context, namespace string) error

	// DeleteNamespace drops the namespace and all entries in it.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Upsert stores entries by id, overwriting any entry with the same id.
	Upsert(ctx context.Context, namespace string, entries []Entry) error

	// Search finds entries whose vectors score at least opts.MinScore
	// against the query vector, sorted by score (most similar first).
	Search(ctx context.Context, namespace string, vector []float64, opts SearchOptions) ([]Candidate, error)

	// Scroll pages through a namespace without vectors. An empty cursor
	// starts from the beginning; an empty next cursor means the scan is done.
	Scroll(ctx context.Context, namespace string, cursor string, limit int) ([]StoredEntry, string, error)

	// DeleteByIDs removes entries by id. Missing ids are not an error.
	DeleteByIDs(ctx context.Context, namespace string, ids []uint64) error

	// Ping checks if the index is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// SearchOptions configures similarity search behavior.
type SearchOptions struct {
	// Limit is the maximum number of candidates to return.
	Limit int

	// MinScore is the minimum cosine similarity for a candidate to be
	// included (1 = identical, 0 = orthogonal).
	MinScore float64
}

// Payload is the metadata and opaque data stored beside each vector.
type Payload struct {
	// Digest is the full SHA-256 hex digest of the key material.
	// Strict matching compares it before accepting a candidate.
	Digest string `json:"digest,omitempty"`

	// Tag is a coarse consumer tag checked under lenient matching.
	Tag string `json:"tag,omitempty"`

	// Agents lists the analyzers whose combined output is cached.
	Agents []string `json:"agents,omitempty"`

	// Data is the cached payload, opaque to the index.
	Data json.RawMessage `json:"data"`

	// CreatedAt is the unix timestamp when the entry was written.
	CreatedAt int64 `json:"created_at"`

	// ContentLength and FingerprintLength describe the source material.
	ContentLength     int `json:"content_length,omitempty"`
	FingerprintLength int `json:"fingerprint_length,omitempty"`
}

// Entry represents a vector entry to be stored.
type Entry struct {
	// ID is derived from the key digest, so re-inserting the same logical
	// key overwrites rather than duplicates.
	ID uint64

	// Vector is the embedding of the key fingerprint.
	Vector []float64

	// Payload carries the cached data and verification metadata.
	Payload Payload
}

// Candidate is a similarity search result, not yet a confirmed cache hit.
type Candidate struct {
	ID      uint64
	Score   float64
	Payload Payload
}

// StoredEntry is an entry returned by Scroll, without its vector.
type StoredEntry struct {
	ID      uint64
	Payload Payload
}
