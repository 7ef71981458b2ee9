package semcache

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full cache engine configuration.
type Config struct {
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Index       IndexConfig       `yaml:"index"`
	QueryCache  QueryCacheConfig  `yaml:"query_cache"`
	ResultCache ResultCacheConfig `yaml:"result_cache"`
	Pruning     PruningConfig     `yaml:"pruning"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // "openai"
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	APIBase   string        `yaml:"api_base"`
	Dimension int           `yaml:"dimension"`
	MemoTTL   time.Duration `yaml:"memo_ttl"` // in-process embedding memoization; 0 disables
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Kind    string        `yaml:"kind"` // "qdrant" or "memory"
	APIBase string        `yaml:"api_base"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// QueryCacheConfig tunes the per-agent query caches.
// Short-text embedding similarity saturates fast, so the threshold here is
// stricter than intuition suggests even though matching is lenient.
type QueryCacheConfig struct {
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	MaxCandidates       int           `yaml:"max_candidates"`
	EstimatedSavings    time.Duration `yaml:"estimated_savings"`
}

// ResultCacheConfig tunes the whole-document result cache.
type ResultCacheConfig struct {
	Namespace           string        `yaml:"namespace"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	MaxCandidates       int           `yaml:"max_candidates"`
	FingerprintLength   int           `yaml:"fingerprint_length"`
	Strict              bool          `yaml:"strict"`
	EstimatedSavings    time.Duration `yaml:"estimated_savings"`
}

// PruningConfig tunes the retention sweep over the result cache.
type PruningConfig struct {
	RetentionDays int     `yaml:"retention_days"`
	PageSize      int     `yaml:"page_size"`
	RatePerSecond float64 `yaml:"rate_per_second"` // index calls per second; 0 = unlimited
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a configuration with the tuned production defaults:
// 0.90 similarity for short queries, 0.98 for document fingerprints, strict
// digest verification on results, seven-day retention.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIBase:   "https://api.openai.com/v1",
			Dimension: 1536,
			MemoTTL:   time.Hour,
		},
		Index: IndexConfig{
			Kind:    "qdrant",
			APIBase: "http://localhost:6333",
			Timeout: 30 * time.Second,
		},
		QueryCache: QueryCacheConfig{
			SimilarityThreshold: 0.90,
			MaxCandidates:       1,
			EstimatedSavings:    1200 * time.Millisecond,
		},
		ResultCache: ResultCacheConfig{
			Namespace:           "review-results",
			SimilarityThreshold: 0.98,
			MaxCandidates:       5,
			FingerprintLength:   DefaultFingerprintLength,
			Strict:              true,
			EstimatedSavings:    12 * time.Second,
		},
		Pruning: PruningConfig{
			RetentionDays: 7,
			PageSize:      100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads and parses a YAML configuration file over the defaults.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}

	switch c.Index.Kind {
	case "qdrant":
		if c.Index.APIBase == "" {
			return fmt.Errorf("index.api_base is required for qdrant")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported index.kind: %q (must be 'qdrant' or 'memory')", c.Index.Kind)
	}

	if t := c.QueryCache.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("query_cache.similarity_threshold must be in (0, 1], got %v", t)
	}
	if t := c.ResultCache.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("result_cache.similarity_threshold must be in (0, 1], got %v", t)
	}
	if c.ResultCache.Namespace == "" {
		return fmt.Errorf("result_cache.namespace is required")
	}
	if c.ResultCache.FingerprintLength < 0 {
		return fmt.Errorf("result_cache.fingerprint_length cannot be negative")
	}
	if c.QueryCache.MaxCandidates < 0 || c.ResultCache.MaxCandidates < 0 {
		return fmt.Errorf("max_candidates cannot be negative")
	}

	if c.Pruning.RetentionDays < 0 {
		return fmt.Errorf("pruning.retention_days cannot be negative")
	}
	if c.Pruning.RatePerSecond < 0 {
		return fmt.Errorf("pruning.rate_per_second cannot be negative")
	}

	return nil
}
