package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestEmbedder(t *testing.T, handler http.HandlerFunc) *OpenAIEmbedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	embedder, err := NewOpenAIEmbedder(OpenAIConfig{
		APIKey:    "test-key",
		APIBase:   server.URL,
		Model:     "text-embedding-3-small",
		Dimension: 3,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return embedder
}

func TestNewOpenAIEmbedder(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewOpenAIEmbedder(OpenAIConfig{})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, "text-embedding-3-small", e.Model())
		assert.Equal(t, 1536, e.Dimension())
	})
}

func TestOpenAIEmbed(t *testing.T) {
	embedder := newOpenAITestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"hello"}, req.Input)
		assert.Equal(t, 3, req.Dimensions)

		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","embedding":[0.1,0.2,0.3],"index":0}]}`))
	})

	vec, err := embedder.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIEmbedBatchOrdering(t *testing.T) {
	// The API may return data out of order; the index field is authoritative.
	embedder := newOpenAITestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","embedding":[3],"index":2},
			{"object":"embedding","embedding":[1],"index":0},
			{"object":"embedding","embedding":[2],"index":1}
		]}`))
	})

	got, err := embedder.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{1}, got[0])
	assert.Equal(t, []float64{2}, got[1])
	assert.Equal(t, []float64{3}, got[2])
}

func TestOpenAIEmbedLegacyModelOmitsDimensions(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","embedding":[0.1],"index":0}]}`))
	}))
	t.Cleanup(server.Close)

	embedder, err := NewOpenAIEmbedder(OpenAIConfig{
		APIKey:    "test-key",
		APIBase:   server.URL,
		Model:     "text-embedding-ada-002",
		Dimension: 1536,
	})
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), "hello")
	require.NoError(t, err)
	_, present := body["dimensions"]
	assert.False(t, present)
}

func TestOpenAIEmbedBatchEmpty(t *testing.T) {
	embedder := newOpenAITestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty batch")
	})

	got, err := embedder.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpenAIEmbedServerError(t *testing.T) {
	embedder := newOpenAITestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	_, err := embedder.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("status=%d", http.StatusTooManyRequests))
}
