// Package redis is a durable store.Store backed by Redis.
//
// Entries are JSON records under "<prefix>:entry:<key>". Insertion order
// lives in the sorted set "<prefix>:order", scored by a counter at
// "<prefix>:seq". AllEmbedded fetches every record with MGET, which is only
// reasonable for small caches.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/store"
)

// DefaultPrefix namespaces keys when Options.Prefix is empty.
const DefaultPrefix = "levy"

// Options configures a Store.
type Options struct {
	Prefix  string
	MaxSize int
	Logger  *slog.Logger
}

// Store implements store.Store on a Redis client. The mutex serializes the
// check-then-evict-then-insert sequence for this process.
type Store struct {
	client  *goredis.Client
	prefix  string
	maxSize int
	logger  *slog.Logger
	mu      sync.Mutex
}

// New wraps an existing client.
func New(client *goredis.Client, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = store.DefaultMaxSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		client:  client,
		prefix:  opts.Prefix,
		maxSize: opts.MaxSize,
		logger:  opts.Logger.With("store", "redis"),
	}
}

// Connect parses a redis:// URL, pings the server and returns a Store.
func Connect(ctx context.Context, url string, opts Options) (*Store, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(client, opts), nil
}

func (s *Store) entryKey(key string) string { return s.prefix + ":entry:" + key }
func (s *Store) orderKey() string { return s.prefix + ":order" }
func (s *Store) seqKey() string { return s.prefix + ":seq" }

func (s *Store) decode(key string, data []byte) (*models.Entry, bool) {
	var e models.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		s.logger.Warn("skipping malformed entry", "key", key, "error", err)
		return nil, false
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return &e, true
}

// Get fetches and decodes the record for key. Missing and malformed
// records both report store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*models.Entry, error) {
	data, err := s.client.Get(ctx, s.entryKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	e, ok := s.decode(key, data)
	if !ok {
		return nil, store.ErrNotFound
	}
	return e, nil
}

// Set writes the record, evicting the oldest key first when a new key would
// exceed capacity.
func (s *Store) Set(ctx context.Context, key string, entry *models.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.client.Exists(ctx, s.entryKey(key)).Result()
	if err != nil {
		return fmt.Errorf("failed to set entry: %w", err)
	}

	var seq int64
	if exists == 0 {
		if err := s.evictIfFull(ctx); err != nil {
			return err
		}
		seq, err = s.client.Incr(ctx, s.seqKey()).Result()
		if err != nil {
			return fmt.Errorf("failed to set entry: %w", err)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(key), data, 0)
		if exists == 0 {
			pipe.ZAdd(ctx, s.orderKey(), goredis.Z{Score: float64(seq), Member: key})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set entry: %w", err)
	}
	return nil
}

// evictIfFull drops the lowest-scored key when the order set is at
// capacity. Caller holds mu.
func (s *Store) evictIfFull(ctx context.Context) error {
	n, err := s.client.ZCard(ctx, s.orderKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}
	if n < int64(s.maxSize) {
		return nil
	}
	oldest, err := s.client.ZRange(ctx, s.orderKey(), 0, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to find oldest entry: %w", err)
	}
	if len(oldest) == 0 {
		return nil
	}
	return s.remove(ctx, oldest[0])
}

func (s *Store) remove(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.entryKey(key))
		pipe.ZRem(ctx, s.orderKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Update reads, mutates and rewrites the record for key.
func (s *Store) Update(ctx context.Context, key string, fn func(*models.Entry)) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	fn(e)
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, s.entryKey(key), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}
	return e, nil
}

// Delete removes the record and its place in the insertion order.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(ctx, key)
}

// AllEmbedded loads every record in insertion order with one MGET and keeps
// those holding an embedding.
func (s *Store) AllEmbedded(ctx context.Context) ([]*models.Entry, error) {
	keys, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	entryKeys := make([]string, len(keys))
	for i, k := range keys {
		entryKeys[i] = s.entryKey(k)
	}
	values, err := s.client.MGet(ctx, entryKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get multiple keys: %w", err)
	}

	out := make([]*models.Entry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		e, ok := s.decode(keys[i], []byte(raw))
		if !ok || !e.HasEmbedding() {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Clear deletes every record along with the order and sequence keys.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	del := make([]string, 0, len(keys)+2)
	for _, k := range keys {
		del = append(del, s.entryKey(k))
	}
	del = append(del, s.orderKey(), s.seqKey())
	if err := s.client.Del(ctx, del...).Err(); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	return nil
}

// Len returns the size of the insertion-order set.
func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.orderKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
