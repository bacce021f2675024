package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsDesc = prometheus.NewDesc("levy_requests_total",
		"Requests answered by the engine.", nil, nil)
	hitsDesc = prometheus.NewDesc("levy_cache_hits_total",
		"Requests answered from the cache, by layer.", []string{"kind"}, nil)
	missesDesc = prometheus.NewDesc("levy_cache_misses_total",
		"Requests that required generation.", nil, nil)
	tokensSavedDesc = prometheus.NewDesc("levy_tokens_saved_total",
		"Approximate tokens not generated thanks to cache hits.", nil, nil)
	latencyDesc = prometheus.NewDesc("levy_latency_avg_ms",
		"Mean request latency in milliseconds.", nil, nil)
)

// Collector exports a Recorder's counters to Prometheus.
type Collector struct {
	rec *Recorder
}

// NewCollector wraps rec.
func NewCollector(rec *Recorder) *Collector {
	return &Collector{rec: rec}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
	ch <- hitsDesc
	ch <- missesDesc
	ch <- tokensSavedDesc
	ch <- latencyDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.rec.Snapshot()
	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.CounterValue, float64(s.TotalRequests))
	ch <- prometheus.MustNewConstMetric(hitsDesc, prometheus.CounterValue, float64(s.ExactHits), string(HitExact))
	ch <- prometheus.MustNewConstMetric(hitsDesc, prometheus.CounterValue, float64(s.SimilarityHits), string(HitSimilarity))
	ch <- prometheus.MustNewConstMetric(missesDesc, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(tokensSavedDesc, prometheus.CounterValue, float64(s.TokensSaved))
	ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, s.AvgLatencyMs)
}
