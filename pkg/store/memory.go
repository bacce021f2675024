package store

import (
	"container/list"
	"context"
	"sync"

	"github.com/levy-ai/levy/pkg/models"
)

// DefaultMaxSize bounds a Memory store created with a non-positive size.
const DefaultMaxSize = 1000

// Memory is an in-process Store with first-in-first-out eviction.
//
// order holds every key in insertion order; embedded holds the subset whose
// entry has an embedding, in the same relative order. Both are mutated only
// under mu, so eviction and index maintenance are atomic with respect to
// readers.
type Memory struct {
	mu       sync.RWMutex
	maxSize  int
	entries  map[string]*memoryItem
	order    *list.List
	embedded *list.List
}

type memoryItem struct {
	entry   *models.Entry
	orderEl *list.Element
	embedEl *list.Element
}

// NewMemory creates a Memory store holding at most maxSize entries.
func NewMemory(maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Memory{
		maxSize:  maxSize,
		entries:  make(map[string]*memoryItem),
		order:    list.New(),
		embedded: list.New(),
	}
}

// MaxSize returns the capacity bound.
func (m *Memory) MaxSize() int { return m.maxSize }

// Get returns a copy of the entry stored under key, or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) (*models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return it.entry.Clone(), nil
}

// Set stores entry under key. Overwriting a resident key keeps its original
// insertion position and never triggers eviction.
func (m *Memory) Set(_ context.Context, key string, entry *models.Entry) error {
	stored := entry.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	if it, ok := m.entries[key]; ok {
		it.entry = stored
		m.reindex(it)
		return nil
	}

	if len(m.entries) >= m.maxSize {
		if front := m.order.Front(); front != nil {
			m.remove(front.Value.(string))
		}
	}

	it := &memoryItem{entry: stored}
	it.orderEl = m.order.PushBack(key)
	if stored.HasEmbedding() {
		it.embedEl = m.embedded.PushBack(key)
	}
	m.entries[key] = it
	return nil
}

// Update applies fn to the resident entry under the lock and returns a copy
// of the result.
func (m *Memory) Update(_ context.Context, key string, fn func(*models.Entry)) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	fn(it.entry)
	m.reindex(it)
	return it.entry.Clone(), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
	return nil
}

// AllEmbedded returns copies of the embedded entries in insertion order.
func (m *Memory) AllEmbedded(_ context.Context) ([]*models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Entry, 0, m.embedded.Len())
	for el := m.embedded.Front(); el != nil; el = el.Next() {
		out = append(out, m.entries[el.Value.(string)].entry.Clone())
	}
	return out, nil
}

// Clear removes every entry.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryItem)
	m.order.Init()
	m.embedded.Init()
	return nil
}

// Len returns the number of resident entries.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// remove drops key from the map and both indexes. Caller holds mu.
func (m *Memory) remove(key string) {
	it, ok := m.entries[key]
	if !ok {
		return
	}
	m.order.Remove(it.orderEl)
	if it.embedEl != nil {
		m.embedded.Remove(it.embedEl)
	}
	delete(m.entries, key)
}

// reindex brings the embedded index in line with it.entry after an in-place
// change. A key gaining an embedding is inserted after the nearest earlier
// embedded key so the index keeps insertion order. Caller holds mu.
func (m *Memory) reindex(it *memoryItem) {
	switch {
	case it.entry.HasEmbedding() && it.embedEl == nil:
		key := it.orderEl.Value.(string)
		for prev := it.orderEl.Prev(); prev != nil; prev = prev.Prev() {
			if p := m.entries[prev.Value.(string)]; p.embedEl != nil {
				it.embedEl = m.embedded.InsertAfter(key, p.embedEl)
				return
			}
		}
		it.embedEl = m.embedded.PushFront(key)
	case !it.entry.HasEmbedding() && it.embedEl != nil:
		m.embedded.Remove(it.embedEl)
		it.embedEl = nil
	}
}
