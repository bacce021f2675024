// Package store holds cache entries shared by the exact and similarity
// cache layers.
package store

import (
	"context"
	"errors"

	"github.com/levy-ai/levy/pkg/models"
)

// ErrNotFound is returned when a key has no resident entry.
var ErrNotFound = errors.New("store: entry not found")

// Store is a capacity-bounded key/value map of cache entries with a
// secondary view over the entries that carry an embedding.
//
// Implementations evict the earliest-inserted resident entry when a new key
// is written at capacity. Expiry is never enforced by the store; readers
// decide what to do with expired entries.
type Store interface {
	// Get returns a copy of the entry stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*models.Entry, error)
	// Set writes entry under key, replacing any previous entry.
	Set(ctx context.Context, key string, entry *models.Entry) error
	// Update applies fn to the resident entry under key and persists the
	// result. It returns a copy of the updated entry, or ErrNotFound.
	Update(ctx context.Context, key string, fn func(*models.Entry)) (*models.Entry, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// AllEmbedded returns copies of every entry holding an embedding, in
	// insertion order.
	AllEmbedded(ctx context.Context) ([]*models.Entry, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Len returns the number of resident entries.
	Len(ctx context.Context) (int, error)
	// Close releases any underlying resources.
	Close() error
}
