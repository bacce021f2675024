package embedding

import (
	"context"
	"fmt"

	"github.com/levy-ai/levy/pkg/provider"
)

const defaultOllamaURL = "http://localhost:11434"

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Ollama calls a local Ollama server's /api/embed endpoint.
type Ollama struct {
	model string
	http  *provider.HTTPClient
}

// NewOllama creates an Ollama embedder.
func NewOllama(model string, opts provider.HTTPOptions) *Ollama {
	if model == "" {
		model = "mxbai-embed-large"
	}
	return &Ollama{model: model, http: provider.NewHTTPClient(opts)}
}

func (o *Ollama) Name() string { return "ollama" }

// Dimension is unknown until the model has answered once.
func (o *Ollama) Dimension() int { return 0 }

func (o *Ollama) Embed(ctx context.Context, text string) ([]float64, error) {
	var resp ollamaEmbedResponse
	if err := o.http.PostJSON(ctx, "/api/embed", ollamaEmbedRequest{Model: o.model, Input: text}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, provider.Malformed(o.Name(), "no embedding in response")
	}
	return resp.Embeddings[0], nil
}
