package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/store"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Similarity matches prompts whose embeddings are close in cosine distance
// to a previously stored prompt. The scan over candidates is exhaustive.
type Similarity struct {
	store     store.Store
	embedder  Embedder
	threshold float64
	now       func() time.Time
}

// NewSimilarity creates a similarity layer accepting candidates scoring at
// or above threshold, which must lie in [0, 1].
func NewSimilarity(s store.Store, embedder Embedder, threshold float64, opts ...LayerOption) (*Similarity, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be between 0 and 1, got %v", threshold)
	}
	if embedder == nil {
		return nil, errors.New("similarity cache requires an embedder")
	}
	o := applyLayerOptions(opts)
	return &Similarity{store: s, embedder: embedder, threshold: threshold, now: o.now}, nil
}

// Threshold returns the acceptance threshold.
func (c *Similarity) Threshold() float64 { return c.threshold }

// Get embeds req's prompt and returns the best-scoring live candidate if it
// clears the threshold. Ties keep the earliest candidate in store order. The
// accepted entry has its score recorded under models.MetadataSimilarityScore.
// Expired candidates are skipped and deleted.
func (c *Similarity) Get(ctx context.Context, req models.Request) (*models.Entry, error) {
	query, err := c.embedder.Embed(ctx, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := c.store.AllEmbedded(ctx)
	if err != nil {
		return nil, fmt.Errorf("similarity scan: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	now := c.now()
	var (
		best      *models.Entry
		bestScore float64
		expired   []string
	)
	for _, cand := range candidates {
		if !cand.HasEmbedding() {
			continue
		}
		if cand.Expired(now) {
			expired = append(expired, cand.Key)
			continue
		}
		score := Cosine(query, cand.Embedding)
		if best == nil || score > bestScore {
			best, bestScore = cand, score
		}
	}

	for _, key := range expired {
		if err := c.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("similarity expire: %w", err)
		}
	}

	if best == nil || bestScore < c.threshold {
		return nil, nil
	}

	updated, err := c.store.Update(ctx, best.Key, func(e *models.Entry) {
		e.AccessCount++
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
		e.Metadata[models.MetadataSimilarityScore] = bestScore
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("similarity touch: %w", err)
	}
	return updated, nil
}

// Set stores responseText for req, embedding the prompt first when no
// embedding is supplied. The key matches the exact layer's.
func (c *Similarity) Set(ctx context.Context, req models.Request, responseText string, embedding []float64, opts ...EntryOption) error {
	if embedding == nil {
		var err error
		embedding, err = c.embedder.Embed(ctx, req.Prompt)
		if err != nil {
			return fmt.Errorf("embed prompt: %w", err)
		}
	}
	e := newEntry(req, responseText, embedding, c.now(), opts)
	if err := c.store.Set(ctx, e.Key, e); err != nil {
		return fmt.Errorf("similarity store: %w", err)
	}
	return nil
}

// Clear does nothing; see Exact.Clear.
func (c *Similarity) Clear(context.Context) error { return nil }

// Cosine returns the cosine similarity of a and b. It is 0 when either
// vector has zero norm or the dimensions differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
