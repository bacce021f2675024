// Package engine answers prompts from the cache when it can and from the
// generation provider when it must.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/levy-ai/levy/pkg/cache"
	"github.com/levy-ai/levy/pkg/config"
	"github.com/levy-ai/levy/pkg/embedding"
	"github.com/levy-ai/levy/pkg/llm"
	"github.com/levy-ai/levy/pkg/metrics"
	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/store"
)

// Engine is safe for concurrent use.
type Engine struct {
	cfg        config.CacheConfig
	backend    string
	gen        llm.Generator
	emb        embedding.Embedder
	store      store.Store
	exact      *cache.Exact
	similarity *cache.Similarity
	metrics    *metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
	inflight   singleflight.Group
}

// New validates cfg and builds an engine with its store and providers.
// Configuration problems are reported here, never by Respond.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		cfg:     cfg.Cache,
		backend: cfg.Store.Backend,
		metrics: metrics.NewRecorder(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.gen == nil {
		if e.gen, err = llm.New(cfg.LLM); err != nil {
			return nil, err
		}
	}
	if e.emb == nil && cfg.Cache.Similarity {
		if e.emb, err = embedding.New(ctx, cfg.Embedding); err != nil {
			return nil, err
		}
	}
	if e.store == nil {
		if e.store, err = OpenStore(ctx, cfg, e.logger); err != nil {
			return nil, err
		}
	} else {
		e.backend = "custom"
	}

	clock := cache.WithClock(e.now)
	e.exact = cache.NewExact(e.store, clock)
	if cfg.Cache.Similarity {
		e.similarity, err = cache.NewSimilarity(e.store, e.emb, cfg.Cache.SimilarityThreshold, clock)
		if err != nil {
			e.store.Close()
			return nil, err
		}
	}
	return e, nil
}

// Respond answers prompt. Lookups run exact first, then similarity; on a
// miss the generation provider is called and the answer is cached.
//
// At most one generation per prompt is in flight. The flight repeats the
// lookups before generating, so a caller that missed just before another
// caller wrote the answer back is served from the cache. Callers that join
// a running flight share its answer as a hit of the first enabled layer
// with score 1.0. The flight is detached from the caller that started it:
// a caller whose context ends stops waiting, while the generation goes on
// for the others and is still cached.
//
// Provider errors are returned as is and record nothing in the metrics.
func (e *Engine) Respond(ctx context.Context, prompt string, params models.Params) (*models.Result, error) {
	start := e.now()
	req := models.NewRequest(prompt, params)

	if !e.cfg.Exact && e.similarity == nil {
		resp, err := e.generate(ctx, req)
		if err != nil {
			return nil, err
		}
		return e.miss(req, start, resp), nil
	}

	entry, source, score, err := e.lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return e.hit(req, start, entry, source, score), nil
	}

	fl, err := e.join(ctx, req)
	if err != nil {
		return nil, err
	}
	switch {
	case fl.entry != nil:
		return e.hit(req, start, fl.entry, fl.source, fl.score), nil
	case fl.leader == req.ID:
		return e.miss(req, start, fl.resp), nil
	default:
		shared := &models.Entry{ResponseText: fl.resp.Text}
		return e.hit(req, start, shared, e.sharedSource(), 1.0), nil
	}
}

// flight is the outcome of one coalesced miss: either an entry found by the
// repeated lookup or a freshly generated response.
type flight struct {
	leader string
	resp   *models.Response
	entry  *models.Entry
	source models.Source
	score  float64
}

// join runs or waits for the flight for req's prompt.
func (e *Engine) join(ctx context.Context, req models.Request) (*flight, error) {
	ch := e.inflight.DoChan(cache.Key(req.Prompt), func() (any, error) {
		fctx := context.WithoutCancel(ctx)

		entry, source, score, err := e.lookup(fctx, req)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return &flight{leader: req.ID, entry: entry, source: source, score: score}, nil
		}

		resp, err := e.generate(fctx, req)
		if err != nil {
			return nil, err
		}
		return &flight{leader: req.ID, resp: resp}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*flight), nil
	}
}

// lookup checks the enabled layers in order. A nil entry is a miss.
func (e *Engine) lookup(ctx context.Context, req models.Request) (*models.Entry, models.Source, float64, error) {
	if e.cfg.Exact {
		entry, err := e.exact.Get(ctx, req)
		if err != nil {
			return nil, "", 0, err
		}
		if entry != nil {
			return entry, models.SourceExactMatch, 1.0, nil
		}
	}

	if e.similarity != nil {
		entry, err := e.similarity.Get(ctx, req)
		if err != nil {
			e.logger.Error("similarity lookup failed", "request_id", req.ID, "error", err)
			return nil, "", 0, err
		}
		if entry != nil {
			score, _ := entry.Metadata[models.MetadataSimilarityScore].(float64)
			return entry, models.SourceSimilarityMatch, score, nil
		}
	}
	return nil, "", 0, nil
}

// sharedSource tags answers handed to callers that joined a flight.
func (e *Engine) sharedSource() models.Source {
	if e.cfg.Exact {
		return models.SourceExactMatch
	}
	return models.SourceSimilarityMatch
}

func (e *Engine) miss(req models.Request, start time.Time, resp *models.Response) *models.Result {
	e.metrics.RecordMiss()
	latency := e.record(start)
	e.logger.Info("cache miss", "request_id", req.ID, "prompt", truncate(req.Prompt), "model", resp.Model, "latency_ms", latency)
	return &models.Result{
		Answer:    resp.Text,
		Source:    models.SourceGeneration,
		LatencyMs: latency,
		Response:  resp,
		Metadata:  map[string]any{},
	}
}

// generate calls the provider and writes the answer back through the exact
// layer, with an embedding when similarity caching is on.
func (e *Engine) generate(ctx context.Context, req models.Request) (*models.Response, error) {
	resp, err := e.gen.Generate(ctx, req)
	if err != nil {
		e.logger.Error("generation failed", "provider", e.gen.Name(), "request_id", req.ID, "error", err)
		return nil, err
	}

	var vec []float64
	if e.similarity != nil {
		if vec, err = e.emb.Embed(ctx, req.Prompt); err != nil {
			e.logger.Error("embedding failed", "provider", e.emb.Name(), "request_id", req.ID, "error", err)
			return nil, fmt.Errorf("embed prompt: %w", err)
		}
	}

	err = e.exact.Set(ctx, req, resp.Text, vec,
		cache.WithTTL(e.cfg.TTL),
		cache.WithMetadata(map[string]any{"model": resp.Model}))
	if err != nil {
		// The answer is still good; only the cache write is lost.
		e.logger.Warn("cache write failed", "request_id", req.ID, "error", err)
	}
	return resp, nil
}

func (e *Engine) hit(req models.Request, start time.Time, entry *models.Entry, source models.Source, score float64) *models.Result {
	kind := metrics.HitExact
	if source == models.SourceSimilarityMatch {
		kind = metrics.HitSimilarity
	}
	e.metrics.RecordHit(kind, len(strings.Fields(entry.ResponseText)))
	latency := e.record(start)
	e.logger.Debug("cache hit", "request_id", req.ID, "source", source, "score", score, "prompt", truncate(req.Prompt))

	md := make(map[string]any, len(entry.Metadata))
	for k, v := range entry.Metadata {
		md[k] = v
	}
	return &models.Result{
		Answer:          entry.ResponseText,
		Source:          source,
		LatencyMs:       latency,
		SimilarityScore: &score,
		Metadata:        md,
	}
}

func (e *Engine) record(start time.Time) float64 {
	ms := float64(e.now().Sub(start)) / float64(time.Millisecond)
	e.metrics.RecordRequest(ms)
	return ms
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() models.MetricsSnapshot {
	return e.metrics.Snapshot()
}

// Recorder exposes the underlying recorder for exporters.
func (e *Engine) Recorder() *metrics.Recorder {
	return e.metrics
}

// Stats reports store occupancy.
func (e *Engine) Stats(ctx context.Context) (models.CacheStats, error) {
	n, err := e.store.Len(ctx)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{Backend: e.backend, Entries: int64(n)}, nil
}

// Clear removes every entry from the shared store. Metrics are kept.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}

func truncate(s string) string {
	const n = 50
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
