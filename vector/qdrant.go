package vector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// QdrantStore implements Store using the Qdrant HTTP API, mapping each
// namespace to its own collection.
// Reference: https://qdrant.tech/documentation/concepts/search/
type QdrantStore struct {
	client    *http.Client
	apiBase   string
	apiKey    string
	dimension int
}

// QdrantConfig holds configuration for the Qdrant store.
type QdrantConfig struct {
	APIBase   string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// NewQdrantStore creates a new Qdrant vector store.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("qdrant api_base is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant dimension must be positive")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &QdrantStore{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiBase:   cfg.APIBase,
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
	}, nil
}

// EnsureNamespace creates the collection for the namespace if it doesn't exist.
func (q *QdrantStore) EnsureNamespace(ctx context.Context, namespace string) error {
	exists, err := q.namespaceExists(ctx, namespace)
	if err != nil {
		return fmt.Errorf("check namespace exists: %w", err)
	}
	if exists {
		return nil
	}

	createBody := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}

	bodyBytes, err := json.Marshal(createBody)
	if err != nil {
		return fmt.Errorf("marshal create body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", q.apiBase, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("create collection failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	return nil
}

func (q *QdrantStore) namespaceExists(ctx context.Context, namespace string) (bool, error) {
	url := fmt.Sprintf("%s/collections/%s/exists", q.apiBase, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return false, err
	}

	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("check collection exists: status=%d", resp.StatusCode)
	}

	var result struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}

	return result.Result.Exists, nil
}

// DeleteNamespace drops the collection backing the namespace.
func (q *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	url := fmt.Sprintf("%s/collections/%s", q.apiBase, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete collection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete collection failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	return nil
}

// Search finds similar vectors in the namespace. The score threshold is
// applied server-side so only qualifying candidates cross the wire.
func (q *QdrantStore) Search(ctx context.Context, namespace string, vector []float64, opts SearchOptions) ([]Candidate, error) {
	if opts.Limit <= 0 {
		opts.Limit = 1
	}

	searchBody := map[string]any{
		"vector":       vector,
		"limit":        opts.Limit,
		"with_payload": true,
	}
	if opts.MinScore > 0 {
		searchBody["score_threshold"] = opts.MinScore
	}

	bodyBytes, err := json.Marshal(searchBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", q.apiBase, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var searchResp qdrantSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		results = append(results, Candidate{
			ID:      r.ID,
			Score:   r.Score,
			Payload: r.Payload,
		})
	}

	return results, nil
}

// Upsert stores entries in the namespace, overwriting by id.
func (q *QdrantStore) Upsert(ctx context.Context, namespace string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]qdrantPoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, qdrantPoint{
			ID:      e.ID,
			Vector:  e.Vector,
			Payload: e.Payload,
		})
	}

	upsertBody := map[string]any{
		"points": points,
	}

	bodyBytes, err := json.Marshal(upsertBody)
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points", q.apiBase, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upsert failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	return nil
}

// Scroll pages through the namespace without vectors. The cursor is the raw
// next_page_offset returned by Qdrant; an empty next cursor ends the scan.
func (q *QdrantStore) Scroll(ctx context.Context, namespace string, cursor string, limit int) ([]StoredEntry, string, error) {
	if limit <= 0 {
		limit = 100
	}

	scrollBody := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if cursor != "" {
		scrollBody["offset"] = json.RawMessage(cursor)
	}

	bodyBytes, err := json.Marshal(scrollBody)
	if err != nil {
		return nil, "", fmt.Errorf("marshal scroll body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/scroll", q.apiBase, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("scroll request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("scroll failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var scrollResp qdrantScrollResponse
	if err := json.NewDecoder(resp.Body).Decode(&scrollResp); err != nil {
		return nil, "", fmt.Errorf("decode response: %w", err)
	}

	entries := make([]StoredEntry, 0, len(scrollResp.Result.Points))
	for _, p := range scrollResp.Result.Points {
		entries = append(entries, StoredEntry{
			ID:      p.ID,
			Payload: p.Payload,
		})
	}

	next := ""
	if len(scrollResp.Result.NextPageOffset) > 0 && string(scrollResp.Result.NextPageOffset) != "null" {
		next = string(scrollResp.Result.NextPageOffset)
	}

	return entries, next, nil
}

// DeleteByIDs removes points from the namespace by id.
func (q *QdrantStore) DeleteByIDs(ctx context.Context, namespace string, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}

	deleteBody := map[string]any{
		"points": ids,
	}

	bodyBytes, err := json.Marshal(deleteBody)
	if err != nil {
		return fmt.Errorf("marshal delete body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete", q.apiBase, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	return nil
}

// Ping checks if Qdrant is reachable.
func (q *QdrantStore) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections", q.apiBase)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}

	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant ping failed: status=%d", resp.StatusCode)
	}

	return nil
}

// Close releases resources.
func (q *QdrantStore) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

func (q *QdrantStore) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
}

// Qdrant API types

type qdrantPoint struct {
	ID      uint64    `json:"id"`
	Vector  []float64 `json:"vector"`
	Payload Payload   `json:"payload"`
}

type qdrantSearchResponse struct {
	Result []qdrantSearchResult `json:"result"`
}

type qdrantSearchResult struct {
	ID      uint64  `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

type qdrantScrollResponse struct {
	Result struct {
		Points         []qdrantScrollPoint `json:"points"`
		NextPageOffset json.RawMessage     `json:"next_page_offset"`
	} `json:"result"`
}

type qdrantScrollPoint struct {
	ID      uint64  `json:"id"`
	Payload Payload `json:"payload"`
}
