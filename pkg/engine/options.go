package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/levy-ai/levy/pkg/config"
	"github.com/levy-ai/levy/pkg/embedding"
	"github.com/levy-ai/levy/pkg/llm"
	"github.com/levy-ai/levy/pkg/store"
	"github.com/levy-ai/levy/pkg/store/redis"
	"github.com/levy-ai/levy/pkg/store/sqlite"
)

// Option customizes an Engine built by New.
type Option func(*Engine)

// WithGenerator uses g instead of the configured generation provider.
func WithGenerator(g llm.Generator) Option {
	return func(e *Engine) { e.gen = g }
}

// WithEmbedder uses emb instead of the configured embedding provider.
func WithEmbedder(emb embedding.Embedder) Option {
	return func(e *Engine) { e.emb = emb }
}

// WithStore uses s instead of the configured store backend. The engine
// takes ownership and closes s on Close.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now for latency and expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// OpenStore opens the backend named by cfg.Store.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return store.NewMemory(cfg.Cache.MaxSize), nil
	case "sqlite":
		s, err := sqlite.New(cfg.Store.Path, cfg.Cache.MaxSize, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := redis.Connect(ctx, cfg.Store.RedisURL, redis.Options{
			Prefix:  cfg.Store.Prefix,
			MaxSize: cfg.Cache.MaxSize,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
