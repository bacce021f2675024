package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/store"
)

// Exact matches byte-identical prompts by their content hash.
type Exact struct {
	store store.Store
	now   func() time.Time
}

// NewExact creates an exact-match layer over s.
func NewExact(s store.Store, opts ...LayerOption) *Exact {
	o := applyLayerOptions(opts)
	return &Exact{store: s, now: o.now}
}

// Get returns the entry for req's prompt, or nil on a miss. An expired entry
// is deleted and reported as a miss.
func (c *Exact) Get(ctx context.Context, req models.Request) (*models.Entry, error) {
	key := Key(req.Prompt)
	entry, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}

	if entry.Expired(c.now()) {
		if err := c.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("exact expire: %w", err)
		}
		return nil, nil
	}

	updated, err := c.store.Update(ctx, key, func(e *models.Entry) { e.AccessCount++ })
	if errors.Is(err, store.ErrNotFound) {
		// Evicted between the read and the bookkeeping write.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exact touch: %w", err)
	}
	return updated, nil
}

// Set writes a fresh entry for req, replacing whatever was stored under the
// same prompt.
func (c *Exact) Set(ctx context.Context, req models.Request, responseText string, embedding []float64, opts ...EntryOption) error {
	e := newEntry(req, responseText, embedding, c.now(), opts)
	if err := c.store.Set(ctx, e.Key, e); err != nil {
		return fmt.Errorf("exact store: %w", err)
	}
	return nil
}

// Clear does nothing: the store is shared with the similarity layer and is
// cleared by its owner.
func (c *Exact) Clear(context.Context) error { return nil }
