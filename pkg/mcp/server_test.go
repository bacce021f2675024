package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/levy-ai/levy/pkg/models"
)

type fakeBackend struct {
	prompts []string
	params  []models.Params
	cleared bool
	err     error
}

func (f *fakeBackend) Respond(_ context.Context, prompt string, p models.Params) (*models.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.prompts = append(f.prompts, prompt)
	f.params = append(f.params, p)
	score := 0.91
	return &models.Result{
		Answer:          "Paris",
		Source:          models.SourceSimilarityMatch,
		LatencyMs:       1.5,
		SimilarityScore: &score,
	}, nil
}

func (f *fakeBackend) Metrics() models.MetricsSnapshot {
	return models.MetricsSnapshot{TotalRequests: 4, ExactHits: 1, SimilarityHits: 1, Misses: 2, TokensSaved: 1234, AvgLatencyMs: 2}
}

func (f *fakeBackend) Stats(context.Context) (models.CacheStats, error) {
	if f.err != nil {
		return models.CacheStats{}, f.err
	}
	return models.CacheStats{Backend: "memory", Entries: 3}, nil
}

func (f *fakeBackend) Clear(context.Context) error {
	f.cleared = true
	return f.err
}

func sendAndReceive(t *testing.T, srv *Server, lines ...string) []Response {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	if err := srv.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resps []Response
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r Response
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		resps = append(resps, r)
	}
	return resps
}

// toolText re-decodes a tools/call result into a ToolCallResult.
func toolText(t *testing.T, r Response) (string, bool) {
	t.Helper()
	data, err := json.Marshal(r.Result)
	if err != nil {
		t.Fatal(err)
	}
	var res ToolCallResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty content")
	}
	return res.Content[0].Text, res.IsError
}

func TestInitializeAndNotification(t *testing.T) {
	srv := New(&fakeBackend{}, "1.2.3", nil)
	resps := sendAndReceive(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	)
	if len(resps) != 1 {
		t.Fatalf("expected 1 response, got %d", len(resps))
	}
	if string(resps[0].ID) != "1" {
		t.Errorf("id = %s", resps[0].ID)
	}
	info := resps[0].Result.(map[string]any)["serverInfo"].(map[string]any)
	if info["name"] != "levy" || info["version"] != "1.2.3" {
		t.Errorf("serverInfo = %v", info)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(&fakeBackend{}, "dev", nil)
	resps := sendAndReceive(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	list := resps[0].Result.(map[string]any)["tools"].([]any)
	var names []string
	for _, tl := range list {
		names = append(names, tl.(map[string]any)["name"].(string))
	}
	want := []string{"levy_respond", "levy_metrics", "levy_cache_stats", "levy_cache_clear"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("tools = %v, want %v", names, want)
	}
}

func TestRespondTool(t *testing.T) {
	b := &fakeBackend{}
	srv := New(b, "dev", nil)
	resps := sendAndReceive(t, srv,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"levy_respond","arguments":{"prompt":"capital of France?","max_tokens":64,"temperature":0.2}}}`,
	)

	text, isErr := toolText(t, resps[0])
	if isErr {
		t.Fatalf("unexpected error result: %s", text)
	}
	for _, want := range []string{"Paris", "source: similarity-match", "similarity: 0.9100"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q: %s", want, text)
		}
	}
	if len(b.prompts) != 1 || b.prompts[0] != "capital of France?" {
		t.Errorf("prompts = %v", b.prompts)
	}
	if b.params[0].MaxTokens != 64 || b.params[0].Temperature == nil || *b.params[0].Temperature != 0.2 {
		t.Errorf("params = %+v", b.params[0])
	}
}

func TestRespondToolRequiresPrompt(t *testing.T) {
	b := &fakeBackend{}
	srv := New(b, "dev", nil)
	resps := sendAndReceive(t, srv,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"levy_respond","arguments":{"prompt":"   "}}}`,
	)
	text, isErr := toolText(t, resps[0])
	if !isErr || !strings.Contains(text, "prompt is required") {
		t.Errorf("got %q isError=%v", text, isErr)
	}
	if len(b.prompts) != 0 {
		t.Error("backend should not be called")
	}
}

func TestRespondToolBackendError(t *testing.T) {
	srv := New(&fakeBackend{err: errors.New("openai: API error (status 500): boom")}, "dev", nil)
	resps := sendAndReceive(t, srv,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"levy_respond","arguments":{"prompt":"hi"}}}`,
	)
	text, isErr := toolText(t, resps[0])
	if !isErr || !strings.Contains(text, "boom") {
		t.Errorf("got %q isError=%v", text, isErr)
	}
}

func TestMetricsAndCacheTools(t *testing.T) {
	b := &fakeBackend{}
	srv := New(b, "dev", nil)
	resps := sendAndReceive(t, srv,
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"levy_metrics"}}`,
		`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"levy_cache_stats"}}`,
		`{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"levy_cache_clear"}}`,
	)
	if len(resps) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(resps))
	}

	metrics, _ := toolText(t, resps[0])
	for _, want := range []string{"Hit rate         50.0%", "Tokens saved     1,234"} {
		if !strings.Contains(metrics, want) {
			t.Errorf("metrics missing %q:\n%s", want, metrics)
		}
	}

	stats, _ := toolText(t, resps[1])
	if !strings.Contains(stats, "Backend: memory") || !strings.Contains(stats, "Entries: 3") {
		t.Errorf("stats = %q", stats)
	}

	cleared, isErr := toolText(t, resps[2])
	if isErr || !b.cleared {
		t.Errorf("clear: %q isError=%v cleared=%v", cleared, isErr, b.cleared)
	}
}

func TestProtocolErrors(t *testing.T) {
	srv := New(&fakeBackend{}, "dev", nil)
	resps := sendAndReceive(t, srv,
		`not json`,
		`{"jsonrpc":"2.0","id":9,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":10,"method":"tools/call","params":"bad"}`,
		`{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"nope"}}`,
	)
	if len(resps) != 4 {
		t.Fatalf("expected 4 responses, got %d", len(resps))
	}
	if resps[0].Error == nil || resps[0].Error.Code != CodeParseError {
		t.Errorf("parse error = %+v", resps[0].Error)
	}
	if resps[1].Error == nil || resps[1].Error.Code != CodeMethodNotFound {
		t.Errorf("method not found = %+v", resps[1].Error)
	}
	if resps[2].Error == nil || resps[2].Error.Code != CodeInvalidParams {
		t.Errorf("invalid params = %+v", resps[2].Error)
	}
	text, isErr := toolText(t, resps[3])
	if !isErr || !strings.Contains(text, "unknown tool: nope") {
		t.Errorf("unknown tool: %q isError=%v", text, isErr)
	}
}
