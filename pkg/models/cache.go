package models

import "time"

// MetadataSimilarityScore is the entry metadata key holding the score of the
// most recent similarity match.
const MetadataSimilarityScore = "last_similarity_score"

// Entry is a cached prompt/response pair.
//
// Embedding is set only when the entry was written with similarity caching
// active. It is treated as immutable once stored and may be shared between
// copies returned by Clone.
type Entry struct {
	Key          string         `json:"key"`
	Prompt       string         `json:"prompt"`
	ResponseText string         `json:"response_text"`
	Embedding    []float64      `json:"embedding,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	AccessCount  int64          `json:"access_count"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Expired reports whether the entry has an expiry that lies before now.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// HasEmbedding reports whether the entry participates in similarity lookups.
func (e *Entry) HasEmbedding() bool {
	return e.Embedding != nil
}

// Clone returns a copy safe to hand out of a store. Metadata is copied;
// the embedding slice is shared.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		c.ExpiresAt = &t
	}
	c.Metadata = make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// MetricsSnapshot is a point-in-time view of engine counters.
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	ExactHits      int64   `json:"exact_hits"`
	SimilarityHits int64   `json:"similarity_hits"`
	Misses         int64   `json:"misses"`
	TokensSaved    int64   `json:"tokens_saved"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
}

// Hits returns the combined exact and similarity hit count.
func (s MetricsSnapshot) Hits() int64 {
	return s.ExactHits + s.SimilarityHits
}

// HitRate returns hits over total requests, or 0 when nothing was recorded.
func (s MetricsSnapshot) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(s.TotalRequests)
}

// CacheStats reports store occupancy for the CLI.
type CacheStats struct {
	Backend string `json:"backend"`
	Entries int64  `json:"entries"`
}
