// Package cache implements the exact-match and similarity-match lookup
// layers. Both layers are stateless views over one shared store.Store and
// write entries under the same key, so a single entry serves both lookups.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/levy-ai/levy/pkg/models"
)

// Key returns the hex SHA-256 of the raw prompt bytes. No normalization is
// applied.
func Key(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Layer is one lookup strategy over the shared store.
type Layer interface {
	Get(ctx context.Context, req models.Request) (*models.Entry, error)
	Set(ctx context.Context, req models.Request, responseText string, embedding []float64, opts ...EntryOption) error
	Clear(ctx context.Context) error
}

// LayerOption configures a cache layer.
type LayerOption func(*layerOptions)

type layerOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now for expiry checks and creation timestamps.
func WithClock(now func() time.Time) LayerOption {
	return func(o *layerOptions) { o.now = now }
}

func applyLayerOptions(opts []LayerOption) layerOptions {
	o := layerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EntryOption adjusts an entry before it is written.
type EntryOption func(*models.Entry)

// WithExpiry sets an absolute expiry time.
func WithExpiry(t time.Time) EntryOption {
	return func(e *models.Entry) { e.ExpiresAt = &t }
}

// WithTTL sets the expiry relative to the entry's creation time. A
// non-positive ttl leaves the entry without expiry.
func WithTTL(ttl time.Duration) EntryOption {
	return func(e *models.Entry) {
		if ttl <= 0 {
			return
		}
		t := e.CreatedAt.Add(ttl)
		e.ExpiresAt = &t
	}
}

// WithMetadata merges md into the entry's metadata.
func WithMetadata(md map[string]any) EntryOption {
	return func(e *models.Entry) {
		for k, v := range md {
			e.Metadata[k] = v
		}
	}
}

func newEntry(req models.Request, responseText string, embedding []float64, now time.Time, opts []EntryOption) *models.Entry {
	e := &models.Entry{
		Key:          Key(req.Prompt),
		Prompt:       req.Prompt,
		ResponseText: responseText,
		Embedding:    embedding,
		CreatedAt:    now,
		Metadata:     map[string]any{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
