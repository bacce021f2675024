package llm

import (
	"context"
	"fmt"

	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/provider"
)

const defaultOllamaURL = "http://localhost:11434"

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         openaiMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Ollama calls a local Ollama server's /api/chat endpoint without streaming.
type Ollama struct {
	model string
	http  *provider.HTTPClient
}

// NewOllama creates an Ollama generator for model.
func NewOllama(model string, opts provider.HTTPOptions) *Ollama {
	if model == "" || model == "gpt-3.5-turbo" {
		model = "llama3.2"
	}
	return &Ollama{model: model, http: provider.NewHTTPClient(opts)}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Generate(ctx context.Context, req models.Request) (*models.Response, error) {
	opts := map[string]any{
		"num_predict": req.MaxTokens,
		"temperature": req.Temperature,
	}
	for k, v := range req.Extra {
		opts[k] = v
	}

	var resp ollamaChatResponse
	body := ollamaChatRequest{
		Model:    o.model,
		Messages: []openaiMessage{{Role: "user", Content: req.Prompt}},
		Options:  opts,
	}
	if err := o.http.PostJSON(ctx, "/api/chat", body, &resp); err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	if resp.Message.Content == "" {
		return nil, provider.Malformed(o.Name(), "empty message")
	}

	return &models.Response{
		Text:       resp.Message.Content,
		TokenUsage: resp.PromptEvalCount + resp.EvalCount,
		Model:      o.model,
	}, nil
}
