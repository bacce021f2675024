package cache

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/store"
)

// tableEmbedder returns fixed vectors per prompt.
type tableEmbedder struct {
	vectors map[string][]float64
	calls   int
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vectors[text], nil
}

// unit returns a 2-d vector whose cosine against [1, 0] is cos.
func unit(cos float64) []float64 {
	return []float64{cos, math.Sqrt(1 - cos*cos)}
}

func req(prompt string) models.Request {
	return models.NewRequest(prompt, models.Params{})
}

func TestKeyDeterminism(t *testing.T) {
	assert.Equal(t, Key("What is Go?"), Key("What is Go?"))
	assert.NotEqual(t, Key("What is Go?"), Key("What is Go!"))
	assert.NotEqual(t, Key("hello"), Key("Hello"), "no case folding")
	assert.NotEqual(t, Key("hello"), Key("hello "), "no whitespace trimming")
	assert.Len(t, Key(""), 64)
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Key("abc"))
}

func TestExactHitIncrementsAccess(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(10)
	c := NewExact(s)

	got, err := c.Get(ctx, req("p"))
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, req("p"), "answer", nil))
	got, err = c.Get(ctx, req("p"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "answer", got.ResponseText)
	assert.Equal(t, int64(1), got.AccessCount)

	got, _ = c.Get(ctx, req("p"))
	assert.Equal(t, int64(2), got.AccessCount)
}

func TestExactSetOverwrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(10)
	c := NewExact(s)

	require.NoError(t, c.Set(ctx, req("p"), "one", nil))
	_, _ = c.Get(ctx, req("p"))
	require.NoError(t, c.Set(ctx, req("p"), "two", []float64{1}))

	got, _ := c.Get(ctx, req("p"))
	assert.Equal(t, "two", got.ResponseText)
	assert.Equal(t, int64(1), got.AccessCount, "overwrite starts a fresh entry")
	assert.Equal(t, []float64{1}, got.Embedding)
}

func TestExactExpiredIsDeleted(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(10)
	c := NewExact(s)
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, req("p"), "answer", nil, WithTTL(time.Minute)))

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	got, err := c.Get(ctx, req("p"))
	require.NoError(t, err)
	assert.Nil(t, got)

	n, _ := s.Len(ctx)
	assert.Zero(t, n, "expired entry removed on read")
}

func TestEntryOptions(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(10)
	c := NewExact(s)
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Set(ctx, req("a"), "x", nil, WithExpiry(at), WithMetadata(map[string]any{"model": "m"})))
	require.NoError(t, c.Set(ctx, req("b"), "x", nil, WithTTL(0)))

	a, _ := s.Get(ctx, Key("a"))
	require.NotNil(t, a.ExpiresAt)
	assert.True(t, a.ExpiresAt.Equal(at))
	assert.Equal(t, "m", a.Metadata["model"])

	b, _ := s.Get(ctx, Key("b"))
	assert.Nil(t, b.ExpiresAt)
}

func TestClearIsNoop(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(10)
	exact := NewExact(s)
	sim, err := NewSimilarity(s, &tableEmbedder{}, 0.5)
	require.NoError(t, err)

	require.NoError(t, exact.Set(ctx, req("p"), "x", []float64{1}))
	require.NoError(t, exact.Clear(ctx))
	require.NoError(t, sim.Clear(ctx))

	n, _ := s.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	assert.InDelta(t, -1.0, Cosine([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)

	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, Cosine([]float64{1, 1}, []float64{0, 0}))
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{0, 0}))
	assert.Equal(t, 0.0, Cosine([]float64{1}, []float64{1, 0}), "dimension mismatch")
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestNewSimilarityValidatesThreshold(t *testing.T) {
	s := store.NewMemory(1)
	_, err := NewSimilarity(s, &tableEmbedder{}, -0.1)
	assert.Error(t, err)
	_, err = NewSimilarity(s, &tableEmbedder{}, 1.1)
	assert.Error(t, err)
	_, err = NewSimilarity(s, nil, 0.5)
	assert.Error(t, err)

	for _, th := range []float64{0, 0.5, 1} {
		c, err := NewSimilarity(s, &tableEmbedder{}, th)
		require.NoError(t, err)
		assert.Equal(t, th, c.Threshold())
	}
}

func TestSimilarityThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	emb := &tableEmbedder{vectors: map[string][]float64{
		"query": {1, 0},
		"low":   unit(0.79),
		"high":  unit(0.81),
	}}

	s := store.NewMemory(10)
	c, err := NewSimilarity(s, emb, 0.8)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, req("low"), "low answer", nil))
	require.NoError(t, c.Set(ctx, req("high"), "high answer", nil))

	got, err := c.Get(ctx, req("query"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "high answer", got.ResponseText)
	assert.InDelta(t, 0.81, got.Metadata[models.MetadataSimilarityScore], 1e-9)
	assert.Equal(t, int64(1), got.AccessCount)

	// Only the sub-threshold candidate remains.
	require.NoError(t, s.Delete(ctx, Key("high")))
	got, err = c.Get(ctx, req("query"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSimilarityInclusiveThreshold(t *testing.T) {
	ctx := context.Background()
	emb := &tableEmbedder{vectors: map[string][]float64{
		"query": {1, 0},
		"same":  {2, 0},
	}}
	s := store.NewMemory(10)
	c, err := NewSimilarity(s, emb, 1.0)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, req("same"), "x", nil))

	got, err := c.Get(ctx, req("query"))
	require.NoError(t, err)
	assert.NotNil(t, got, "score equal to threshold is accepted")
}

func TestSimilarityTieKeepsEarliest(t *testing.T) {
	ctx := context.Background()
	emb := &tableEmbedder{vectors: map[string][]float64{
		"query":  {1, 1},
		"first":  {2, 1},
		"second": {2, 1},
	}}
	s := store.NewMemory(10)
	c, err := NewSimilarity(s, emb, 0.5)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, req("first"), "first", nil))
	require.NoError(t, c.Set(ctx, req("second"), "second", nil))

	got, err := c.Get(ctx, req("query"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.ResponseText)
}

func TestSimilarityZeroVectors(t *testing.T) {
	ctx := context.Background()
	emb := &tableEmbedder{vectors: map[string][]float64{
		"zero":   {0, 0},
		"normal": {1, 0},
	}}
	s := store.NewMemory(10)
	c, err := NewSimilarity(s, emb, 0.1)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, req("normal"), "x", nil))
	got, err := c.Get(ctx, req("zero"))
	require.NoError(t, err)
	assert.Nil(t, got, "zero query vector scores 0")

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, c.Set(ctx, req("zero"), "x", nil))
	got, err = c.Get(ctx, req("normal"))
	require.NoError(t, err)
	assert.Nil(t, got, "zero candidate vector scores 0")
}

func TestSimilaritySkipsAndDeletesExpired(t *testing.T) {
	ctx := context.Background()
	emb := &tableEmbedder{vectors: map[string][]float64{
		"query": {1, 0},
		"old":   {1, 0},
		"fresh": unit(0.9),
	}}
	s := store.NewMemory(10)
	c, err := NewSimilarity(s, emb, 0.5)
	require.NoError(t, err)
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, req("old"), "old", nil, WithTTL(time.Second)))
	require.NoError(t, c.Set(ctx, req("fresh"), "fresh", nil))

	c.now = func() time.Time { return now.Add(time.Minute) }
	got, err := c.Get(ctx, req("query"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fresh", got.ResponseText)

	_, err = s.Get(ctx, Key("old"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSimilarityEmptyStoreStillEmbeds(t *testing.T) {
	ctx := context.Background()
	emb := &tableEmbedder{vectors: map[string][]float64{"q": {1}}}
	c, err := NewSimilarity(store.NewMemory(10), emb, 0)
	require.NoError(t, err)

	got, err := c.Get(ctx, req("q"))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, emb.calls)
}

func TestSimilaritySetComputesEmbedding(t *testing.T) {
	ctx := context.Background()
	emb := &tableEmbedder{vectors: map[string][]float64{"p": {0.3, 0.4}}}
	s := store.NewMemory(10)
	c, err := NewSimilarity(s, emb, 0.5)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, req("p"), "x", nil))
	e, err := s.Get(ctx, Key("p"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.4}, e.Embedding)

	// A supplied embedding is used as is.
	require.NoError(t, c.Set(ctx, req("p"), "x", []float64{9}))
	assert.Equal(t, 1, emb.calls)

	// The exact layer sees the same entry.
	hit, err := NewExact(s).Get(ctx, req("p"))
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, []float64{9}, hit.Embedding)
}

func TestSimilarityEmbedderError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend down")
	c, err := NewSimilarity(store.NewMemory(10), &tableEmbedder{err: boom}, 0.5)
	require.NoError(t, err)

	_, err = c.Get(ctx, req("q"))
	assert.ErrorIs(t, err, boom)
	err = c.Set(ctx, req("q"), "x", nil)
	assert.ErrorIs(t, err, boom)
}
