package semcache

import "fmt"

// Error kinds for cache-internal failures. They classify log events and
// counters; the engine never propagates them out of Get/Set.
const (
	KindEmbeddingUnavailable = "embedding_unavailable"
	KindIndexUnavailable     = "index_unavailable"
	KindSerialization        = "serialization_error"
	KindNamespaceNotFound    = "namespace_not_found"
)

// CacheError is a classified failure from the embedding provider, the
// vector index, or payload serialization.
type CacheError struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace"`
	Op        string `json:"op"`
	Err       error  `json:"-"`
	Retryable bool   `json:"-"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	return fmt.Sprintf("[%s] %s: %v (namespace=%s)", e.Kind, e.Op, e.Err, e.Namespace)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error {
	return e.Err
}

// NewEmbeddingError classifies an embedding provider failure.
func NewEmbeddingError(namespace, op string, err error) *CacheError {
	return &CacheError{
		Kind:      KindEmbeddingUnavailable,
		Namespace: namespace,
		Op:        op,
		Err:       err,
		Retryable: true,
	}
}

// NewIndexError classifies a vector index failure.
func NewIndexError(namespace, op string, err error) *CacheError {
	return &CacheError{
		Kind:      KindIndexUnavailable,
		Namespace: namespace,
		Op:        op,
		Err:       err,
		Retryable: true,
	}
}

// NewSerializationError classifies a payload that cannot round-trip
// through storage.
func NewSerializationError(namespace, op string, err error) *CacheError {
	return &CacheError{
		Kind:      KindSerialization,
		Namespace: namespace,
		Op:        op,
		Err:       err,
		Retryable: false,
	}
}

// NewNamespaceError classifies a missing namespace. Lazy creation heals it
// on the next call.
func NewNamespaceError(namespace, op string, err error) *CacheError {
	return &CacheError{
		Kind:      KindNamespaceNotFound,
		Namespace: namespace,
		Op:        op,
		Err:       err,
		Retryable: true,
	}
}
