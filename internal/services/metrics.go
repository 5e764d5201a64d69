package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Fetch layer metrics
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	StaleServes   prometheus.Counter
	Fallbacks     prometheus.Counter
	FetchAttempts prometheus.Counter
	FetchRetries  prometheus.Counter
	FetchTimeouts prometheus.Counter
	FetchLatency  prometheus.Histogram

	// Parser metrics
	ParseFailures prometheus.Counter

	// Background refresh metrics
	RefreshRuns *prometheus.CounterVec
}

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainboard_cache_hits_total",
			Help: "Total number of fetches served from the fresh cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainboard_cache_misses_total",
			Help: "Total number of fetches that had to go upstream",
		}),
		StaleServes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainboard_cache_stale_serves_total",
			Help: "Total number of fetches answered with expired cache entries",
		}),
		Fallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainboard_fetch_fallbacks_total",
			Help: "Total number of fetches that degraded to a typed empty default",
		}),
		FetchAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainboard_fetch_attempts_total",
			Help: "Total number of upstream request attempts, retries included",
		}),
		FetchRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainboard_fetch_retries_total",
			Help: "Total number of failed attempts that were retried",
		}),
		FetchTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainboard_fetch_timeouts_total",
			Help: "Total number of fetches cancelled by the overall deadline",
		}),
		FetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainboard_fetch_duration_seconds",
			Help:    "Upstream fetch latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		ParseFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainboard_proposal_parse_failures_total",
			Help: "Total number of proposal documents skipped due to parse errors",
		}),
		RefreshRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainboard_refresh_runs_total",
			Help: "Total number of background refresh runs by outcome",
		}, []string{"outcome"}), // outcome: "ok" or "error"
	}
}

// RecordCacheHit records a fresh-cache hit
func (m *Metrics) RecordCacheHit() { m.CacheHits.Inc() }

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() { m.CacheMisses.Inc() }

// RecordStaleServe records a stale-entry fallback
func (m *Metrics) RecordStaleServe() { m.StaleServes.Inc() }

// RecordFallback records a typed-default fallback
func (m *Metrics) RecordFallback() { m.Fallbacks.Inc() }

// RecordFetchAttempt records one upstream attempt
func (m *Metrics) RecordFetchAttempt() { m.FetchAttempts.Inc() }

// RecordFetchRetry records a retried attempt
func (m *Metrics) RecordFetchRetry() { m.FetchRetries.Inc() }

// RecordFetchTimeout records an overall-deadline cancellation
func (m *Metrics) RecordFetchTimeout() { m.FetchTimeouts.Inc() }

// RecordFetchLatency records upstream fetch latency
func (m *Metrics) RecordFetchLatency(seconds float64) { m.FetchLatency.Observe(seconds) }

// RecordParseFailure records a skipped proposal document
func (m *Metrics) RecordParseFailure() { m.ParseFailures.Inc() }

// RecordRefreshRun records a background refresh run
func (m *Metrics) RecordRefreshRun(outcome string) { m.RefreshRuns.WithLabelValues(outcome).Inc() }
