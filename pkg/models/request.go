package models

import "github.com/google/uuid"

// Default generation parameters applied by NewRequest.
const (
	DefaultMaxTokens   = 256
	DefaultTemperature = 0.7
)

// Params are the caller-supplied generation parameters for a prompt.
type Params struct {
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Request is a single prompt submitted to the engine. It is never mutated
// after NewRequest returns.
type Request struct {
	ID          string         `json:"id"`
	Prompt      string         `json:"prompt"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// NewRequest builds a Request with a fresh identifier, filling unset
// parameters with their defaults.
func NewRequest(prompt string, p Params) Request {
	req := Request{
		ID:          uuid.NewString(),
		Prompt:      prompt,
		MaxTokens:   p.MaxTokens,
		Temperature: DefaultTemperature,
		Extra:       make(map[string]any, len(p.Extra)),
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if p.Temperature != nil {
		req.Temperature = *p.Temperature
	}
	for k, v := range p.Extra {
		req.Extra[k] = v
	}
	return req
}

// Response is what a generation provider returns on success.
type Response struct {
	Text       string         `json:"text"`
	TokenUsage int            `json:"token_usage"`
	Model      string         `json:"model"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Source tags where a Result's answer came from.
type Source string

const (
	SourceGeneration      Source = "generation"
	SourceExactMatch      Source = "exact-match"
	SourceSimilarityMatch Source = "similarity-match"
)

// Result is the value returned to callers of the engine.
type Result struct {
	Answer          string         `json:"answer"`
	Source          Source         `json:"source"`
	LatencyMs       float64        `json:"latency_ms"`
	SimilarityScore *float64       `json:"similarity_score,omitempty"`
	Response        *Response      `json:"response,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}
