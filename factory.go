package semcache

import (
	"context"
	"fmt"

	"github.com/reviewloop/semcache/embedding"
	"github.com/reviewloop/semcache/internal/observability"
	"github.com/reviewloop/semcache/vector"
)

// NewFromConfig builds the embedder, the vector store, and a Manager from
// configuration. This is the usual entry point for production wiring;
// tests and embedders with custom stacks use NewManager directly.
// A nil logger builds one from the logging section of the config.
func NewFromConfig(ctx context.Context, cfg *Config, logger *observability.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = newLogger(cfg.Logging)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}

	return NewManager(ctx, embedder, store, *cfg, logger)
}

func newLogger(cfg LoggingConfig) *observability.Logger {
	return observability.NewLogger(observability.LoggerConfig{
		Level:      observability.ParseLevel(cfg.Level),
		JSONFormat: cfg.Format != "text",
	})
}

func newEmbedder(cfg *Config) (embedding.Embedder, error) {
	var inner embedding.Embedder

	switch cfg.Embedding.Provider {
	case "openai", "":
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:    cfg.Embedding.APIKey,
			APIBase:   cfg.Embedding.APIBase,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
		})
		if err != nil {
			return nil, err
		}
		inner = e
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	if cfg.Embedding.MemoTTL > 0 {
		return embedding.NewCachedEmbedder(inner, cfg.Embedding.MemoTTL), nil
	}
	return inner, nil
}

func newStore(cfg *Config) (vector.Store, error) {
	switch cfg.Index.Kind {
	case "qdrant", "":
		return vector.NewQdrantStore(vector.QdrantConfig{
			APIBase:   cfg.Index.APIBase,
			APIKey:    cfg.Index.APIKey,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Index.Timeout,
		})
	case "memory":
		return vector.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported index kind: %s", cfg.Index.Kind)
	}
}
