package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/store"
)

func newTestStore(t *testing.T, maxSize int) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "store_test.db")
	s, err := New(dbPath, maxSize, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 10)

	expires := time.Now().Add(time.Hour).UTC()
	in := &models.Entry{
		Key:          "k1",
		Prompt:       "hi",
		ResponseText: "hello",
		Embedding:    []float64{0.5, -0.25},
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    &expires,
		Metadata:     map[string]any{"source": "test"},
	}
	require.NoError(t, s.Set(ctx, "k1", in))

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.ResponseText)
	assert.Equal(t, []float64{0.5, -0.25}, got.Embedding)
	assert.Equal(t, "test", got.Metadata["source"])
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expires))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEvictionBound(t *testing.T) {
	ctx := context.Background()
	const maxSize = 3
	s := newTestStore(t, maxSize)

	for i := 0; i <= maxSize; i++ {
		key := fmt.Sprintf("k%d", i)
		require.NoError(t, s.Set(ctx, key, &models.Entry{Key: key, Prompt: key, ResponseText: key, Embedding: []float64{1}}))
	}

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, maxSize, n)

	_, err = s.Get(ctx, "k0")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := s.AllEmbedded(ctx)
	require.NoError(t, err)
	require.Len(t, all, maxSize)
	assert.Equal(t, "k1", all[0].Key)
}

func TestOverwriteKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)

	require.NoError(t, s.Set(ctx, "a", &models.Entry{Key: "a", ResponseText: "1"}))
	require.NoError(t, s.Set(ctx, "b", &models.Entry{Key: "b", ResponseText: "1"}))
	require.NoError(t, s.Set(ctx, "a", &models.Entry{Key: "a", ResponseText: "2"}))

	n, _ := s.Len(ctx)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Set(ctx, "c", &models.Entry{Key: "c"}))
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Get(ctx, "b")
	assert.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 10)
	require.NoError(t, s.Set(ctx, "a", &models.Entry{Key: "a", ResponseText: "x", Embedding: []float64{1}}))

	got, err := s.Update(ctx, "a", func(e *models.Entry) {
		e.AccessCount++
		e.Metadata[models.MetadataSimilarityScore] = 0.9
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccessCount)

	stored, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.AccessCount)
	assert.Equal(t, 0.9, stored.Metadata[models.MetadataSimilarityScore])

	_, err = s.Update(ctx, "missing", func(*models.Entry) {})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMalformedRowIsMiss(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 10)
	require.NoError(t, s.Set(ctx, "good", &models.Entry{Key: "good", Embedding: []float64{1}}))

	_, err := s.db.Exec(
		`INSERT INTO cache_entries (key, prompt, response, embedding, created_at) VALUES (?, ?, ?, ?, ?)`,
		"bad", "p", "r", "{not json", time.Now().UnixNano(),
	)
	require.NoError(t, err)

	_, err = s.Get(ctx, "bad")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := s.AllEmbedded(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].Key)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 10)

	_ = s.Set(ctx, "h1", &models.Entry{Key: "h1"})
	_ = s.Set(ctx, "h2", &models.Entry{Key: "h2"})
	require.NoError(t, s.Delete(ctx, "h1"))

	n, _ := s.Len(ctx)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Clear(ctx))
	n, _ = s.Len(ctx)
	assert.Equal(t, 0, n)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	s, err := New(dbPath, 10, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "a", &models.Entry{Key: "a", ResponseText: "kept"}))
	require.NoError(t, s.Close())

	s, err = New(dbPath, 10, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.ResponseText)
}
