// Package metrics records cache effectiveness for an engine.
package metrics

import (
	"fmt"
	"sync"

	"github.com/levy-ai/levy/pkg/models"
)

// HitKind distinguishes the layer that served a hit.
type HitKind string

const (
	HitExact      HitKind = "exact"
	HitSimilarity HitKind = "similarity"
)

// Recorder accumulates request counters for the lifetime of an engine. It
// is safe for concurrent use.
type Recorder struct {
	mu             sync.Mutex
	totalRequests  int64
	exactHits      int64
	similarityHits int64
	misses         int64
	tokensSaved    int64
	latencySumMs   float64
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordHit counts a hit of the given kind that avoided generating
// tokensSaved tokens.
func (r *Recorder) RecordHit(kind HitKind, tokensSaved int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case HitExact:
		r.exactHits++
	case HitSimilarity:
		r.similarityHits++
	}
	r.tokensSaved += int64(tokensSaved)
}

// RecordMiss counts a request that required generation.
func (r *Recorder) RecordMiss() {
	r.mu.Lock()
	r.misses++
	r.mu.Unlock()
}

// RecordRequest counts one completed request and its latency.
func (r *Recorder) RecordRequest(latencyMs float64) {
	r.mu.Lock()
	r.totalRequests++
	r.latencySumMs += latencyMs
	r.mu.Unlock()
}

// Snapshot returns the current counters.
func (r *Recorder) Snapshot() models.MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := models.MetricsSnapshot{
		TotalRequests:  r.totalRequests,
		ExactHits:      r.exactHits,
		SimilarityHits: r.similarityHits,
		Misses:         r.misses,
		TokensSaved:    r.tokensSaved,
	}
	if r.totalRequests > 0 {
		s.AvgLatencyMs = r.latencySumMs / float64(r.totalRequests)
	}
	return s
}

// String returns a one-line summary of the counters.
func (r *Recorder) String() string {
	return Summary(r.Snapshot())
}

// Summary formats s the way Recorder.String does.
func Summary(s models.MetricsSnapshot) string {
	return fmt.Sprintf("LevyMetrics(Requests=%d, Hits=%d (%.1f%%), TokensSaved=%d, AvgLat=%.2fms)",
		s.TotalRequests, s.Hits(), s.HitRate()*100, s.TokensSaved, s.AvgLatencyMs)
}
