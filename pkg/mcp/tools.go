package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/levy-ai/levy/pkg/models"
)

type respondArgs struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
}

type tool struct {
	def    ToolDefinition
	handle func(ctx context.Context, b Backend, args json.RawMessage) ToolCallResult
}

var tools = []tool{
	{
		def: ToolDefinition{
			Name:        "levy_respond",
			Description: "Answer a prompt, serving it from the cache when an identical or similar prompt was answered before.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []string{"prompt"},
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "The prompt to answer",
					},
					"max_tokens": map[string]any{
						"type":        "integer",
						"description": "Maximum output tokens (optional, default 256)",
					},
					"temperature": map[string]any{
						"type":        "number",
						"description": "Sampling temperature (optional, default 0.7)",
					},
				},
			},
		},
		handle: handleRespond,
	},
	{
		def: ToolDefinition{
			Name:        "levy_metrics",
			Description: "Show request, hit, miss and tokens-saved counters.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		handle: handleMetrics,
	},
	{
		def: ToolDefinition{
			Name:        "levy_cache_stats",
			Description: "Show the store backend and how many entries it holds.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		handle: handleCacheStats,
	},
	{
		def: ToolDefinition{
			Name:        "levy_cache_clear",
			Description: "Remove every cached entry.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		handle: handleCacheClear,
	},
}

func toolDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = t.def
	}
	return defs
}

func toolByName(name string) (tool, bool) {
	for _, t := range tools {
		if t.def.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

func handleRespond(ctx context.Context, b Backend, raw json.RawMessage) ToolCallResult {
	var args respondArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult("invalid arguments: " + err.Error())
		}
	}
	if strings.TrimSpace(args.Prompt) == "" {
		return errorResult("prompt is required")
	}

	res, err := b.Respond(ctx, args.Prompt, models.Params{MaxTokens: args.MaxTokens, Temperature: args.Temperature})
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(formatResult(res))
}

func handleMetrics(_ context.Context, b Backend, _ json.RawMessage) ToolCallResult {
	return textResult(formatMetrics(b.Metrics()))
}

func handleCacheStats(ctx context.Context, b Backend, _ json.RawMessage) ToolCallResult {
	stats, err := b.Stats(ctx)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleCacheClear(ctx context.Context, b Backend, _ json.RawMessage) ToolCallResult {
	if err := b.Clear(ctx); err != nil {
		return errorResult(err.Error())
	}
	return textResult("All cache entries cleared.")
}
