package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEmbeddingModel names the local sentence encoder used when no
// embedding model is configured.
const DefaultEmbeddingModel = "all-MiniLM-L6-v2"

// Config holds all Levy configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
}

// LLMConfig selects the generation provider.
// Provider is "mock" (default), "openai" or "ollama".
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	MockLatency time.Duration `yaml:"mock_latency"`
}

// EmbeddingConfig selects the embedding provider.
// Provider is "mock" (default), "hashing", "openai", "ollama" or "bedrock".
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Dimension  int           `yaml:"dimension"`
	Region     string        `yaml:"region"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// CacheConfig controls the cache layers. A zero TTL disables expiry.
type CacheConfig struct {
	Exact               bool          `yaml:"exact"`
	Similarity          bool          `yaml:"similarity"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	TTL                 time.Duration `yaml:"ttl"`
	MaxSize             int           `yaml:"max_size"`
}

// StoreConfig selects where entries live.
// Backend is "memory" (default), "sqlite" or "redis".
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig controls the CLI's slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults. The generation API key
// falls back to $OPENAI_API_KEY.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		LLM: LLMConfig{
			Provider:    "mock",
			Model:       "gpt-3.5-turbo",
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Timeout:     30 * time.Second,
			MaxRetries:  3,
			MockLatency: 500 * time.Millisecond,
		},
		Embedding: EmbeddingConfig{
			Provider:   "mock",
			Model:      DefaultEmbeddingModel,
			Dimension:  384,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Cache: CacheConfig{
			Exact:               true,
			Similarity:          true,
			SimilarityThreshold: 0.85,
			TTL:                 time.Hour,
			MaxSize:             1000,
		},
		Store: StoreConfig{
			Backend: "memory",
			Path:    "levy.db",
			Prefix:  "levy",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Validate reports every configuration error found in c.
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case "mock", "ollama":
	case "openai":
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("llm: openai provider requires api_key"))
		}
	default:
		errs = append(errs, fmt.Errorf("llm: unknown provider %q", c.LLM.Provider))
	}

	switch c.Embedding.Provider {
	case "mock", "hashing", "ollama", "bedrock":
	case "openai":
		if c.Embedding.APIKey == "" {
			errs = append(errs, errors.New("embedding: openai provider requires api_key"))
		}
	default:
		errs = append(errs, fmt.Errorf("embedding: unknown provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension < 0 {
		errs = append(errs, fmt.Errorf("embedding: dimension must not be negative, got %d", c.Embedding.Dimension))
	}

	if t := c.Cache.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("cache: similarity_threshold must be between 0 and 1, got %v", t))
	}
	if c.Cache.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("cache: max_size must be positive, got %d", c.Cache.MaxSize))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache: ttl must not be negative, got %v", c.Cache.TTL))
	}

	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store: sqlite backend requires path"))
		}
	case "redis":
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store: redis backend requires redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("store: unknown backend %q", c.Store.Backend))
	}

	return errors.Join(errs...)
}
