// Package llm wraps the text generation backends behind one interface.
package llm

import (
	"context"
	"fmt"

	"github.com/levy-ai/levy/pkg/config"
	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/provider"
)

// Generator produces a response for a request.
type Generator interface {
	Generate(ctx context.Context, req models.Request) (*models.Response, error)
	Name() string
}

// New builds the generator named by cfg.Provider.
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "", "mock":
		return NewMock(cfg.MockLatency), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an api key")
		}
		return NewOpenAI(cfg.Model, httpOptions("openai", cfg, defaultOpenAIURL)), nil
	case "ollama":
		return NewOllama(cfg.Model, httpOptions("ollama", cfg, defaultOllamaURL)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func httpOptions(name string, cfg config.LLMConfig, defaultURL string) provider.HTTPOptions {
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
