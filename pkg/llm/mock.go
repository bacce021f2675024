package llm

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/levy-ai/levy/pkg/models"
)

// MockModel is the model name reported by Mock.
const MockModel = "mock-v1"

// Mock answers with the prompt reversed after an optional delay. It counts
// its calls so tests can observe how often generation really happened.
type Mock struct {
	latency time.Duration
	calls   atomic.Int64
}

// NewMock returns a Mock that sleeps for latency before answering.
func NewMock(latency time.Duration) *Mock {
	return &Mock{latency: latency}
}

func (m *Mock) Name() string { return "mock" }

// Calls returns how many times Generate has been invoked.
func (m *Mock) Calls() int64 { return m.calls.Load() }

func (m *Mock) Generate(ctx context.Context, req models.Request) (*models.Response, error) {
	m.calls.Add(1)
	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	text := "Computed response for: " + reverse(req.Prompt)
	return &models.Response{
		Text:       text,
		TokenUsage: len(strings.Fields(text)),
		Model:      MockModel,
	}, nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
