package embedding

import (
	"context"
	"fmt"

	"github.com/levy-ai/levy/pkg/provider"
)

const defaultOpenAIURL = "https://api.openai.com/v1"

type openaiEmbeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openaiEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// OpenAI calls the /embeddings endpoint of an OpenAI-compatible API.
type OpenAI struct {
	model string
	dim   int
	http  *provider.HTTPClient
}

// NewOpenAI creates an OpenAI embedder. A positive dim is forwarded as the
// requested output dimension.
func NewOpenAI(model string, dim int, opts provider.HTTPOptions) *OpenAI {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAI{model: model, dim: dim, http: provider.NewHTTPClient(opts)}
}

func (o *OpenAI) Name() string   { return "openai" }
func (o *OpenAI) Dimension() int { return o.dim }

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	var resp openaiEmbeddingResponse
	req := openaiEmbeddingRequest{Model: o.model, Input: text, Dimensions: o.dim}
	if err := o.http.PostJSON(ctx, "/embeddings", req, &resp); err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, provider.Malformed(o.Name(), "no embedding in response")
	}
	return resp.Data[0].Embedding, nil
}
