package mcp

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/levy-ai/levy/pkg/models"
)

func formatResult(r *models.Result) string {
	var b strings.Builder
	b.WriteString(r.Answer)
	fmt.Fprintf(&b, "\n\nsource: %s\nlatency: %.2fms\n", r.Source, r.LatencyMs)
	if r.SimilarityScore != nil {
		fmt.Fprintf(&b, "similarity: %.4f\n", *r.SimilarityScore)
	}
	return b.String()
}

func formatMetrics(s models.MetricsSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %s\n", "Requests", humanize.Comma(s.TotalRequests))
	fmt.Fprintf(&b, "%-16s %s\n", "Exact hits", humanize.Comma(s.ExactHits))
	fmt.Fprintf(&b, "%-16s %s\n", "Similarity hits", humanize.Comma(s.SimilarityHits))
	fmt.Fprintf(&b, "%-16s %s\n", "Misses", humanize.Comma(s.Misses))
	fmt.Fprintf(&b, "%-16s %.1f%%\n", "Hit rate", s.HitRate()*100)
	fmt.Fprintf(&b, "%-16s %s\n", "Tokens saved", humanize.Comma(s.TokensSaved))
	fmt.Fprintf(&b, "%-16s %.2fms\n", "Avg latency", s.AvgLatencyMs)
	return b.String()
}

func formatCacheStats(s models.CacheStats) string {
	return fmt.Sprintf("Backend: %s\nEntries: %s\n", s.Backend, humanize.Comma(s.Entries))
}
