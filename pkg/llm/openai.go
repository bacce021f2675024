package llm

import (
	"context"
	"fmt"

	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/provider"
)

const defaultOpenAIURL = "https://api.openai.com/v1"

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAI calls the chat completions endpoint of an OpenAI-compatible API.
type OpenAI struct {
	model string
	http  *provider.HTTPClient
}

// NewOpenAI creates an OpenAI generator for model.
func NewOpenAI(model string, opts provider.HTTPOptions) *OpenAI {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &OpenAI{model: model, http: provider.NewHTTPClient(opts)}
}

func (o *OpenAI) Name() string { return "openai" }

// Generate sends req as a single user message. Extra parameters are merged
// into the payload and may override the defaults.
func (o *OpenAI) Generate(ctx context.Context, req models.Request) (*models.Response, error) {
	payload := map[string]any{
		"model":       o.model,
		"messages":    []openaiMessage{{Role: "user", Content: req.Prompt}},
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	for k, v := range req.Extra {
		payload[k] = v
	}

	var resp openaiResponse
	if err := o.http.PostJSON(ctx, "/chat/completions", payload, &resp); err != nil {
		return nil, fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, provider.Malformed(o.Name(), "no choices in response")
	}

	meta := map[string]any{}
	if resp.Model != "" {
		meta["served_model"] = resp.Model
	}
	return &models.Response{
		Text:       resp.Choices[0].Message.Content,
		TokenUsage: resp.Usage.TotalTokens,
		Model:      o.model,
		Metadata:   meta,
	}, nil
}
