// Package embedding turns text into vectors for the similarity cache.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/levy-ai/levy/pkg/config"
	"github.com/levy-ai/levy/pkg/provider"
)

// DefaultDimension is the vector size of the local embedders.
const DefaultDimension = 384

// Embedder maps text to a vector of fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
	Name() string
}

// New builds the embedder named by cfg.Provider.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}

	// Remote providers choose their own model unless one is named.
	model := cfg.Model
	if model == config.DefaultEmbeddingModel {
		model = ""
	}

	switch cfg.Provider {
	case "", "mock":
		return NewMock(dim), nil
	case "hashing":
		return NewHashing(dim), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embeddings require an api key")
		}
		return NewOpenAI(model, cfg.Dimension, httpOptions("openai", cfg, defaultOpenAIURL)), nil
	case "ollama":
		return NewOllama(model, httpOptions("ollama", cfg, defaultOllamaURL)), nil
	case "bedrock":
		return NewBedrockFromConfig(ctx, model, cfg.Region)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func httpOptions(name string, cfg config.EmbeddingConfig, defaultURL string) provider.HTTPOptions {
	base := cfg.BaseURL
	if base == "" {
		base = defaultURL
	}
	opts := provider.HTTPOptions{
		Name:       name,
		BaseURL:    base,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.APIKey != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	}
	return opts
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}
