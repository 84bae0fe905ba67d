// file: internal/metrics/metrics.go
// version: 2.0.0
// guid: fe9e73e6-0452-4350-9e84-328b8570350f

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	providerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "book_catalog",
		Name:      "provider_calls_total",
		Help:      "Provider calls by provider, capability and outcome",
	}, []string{"provider", "capability", "outcome"})
	providerRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "book_catalog",
		Name:      "provider_retries_total",
		Help:      "Retry waits spent on provider calls",
	}, []string{"provider"})
	aggregationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "book_catalog",
		Name:      "aggregation_duration_seconds",
		Help:      "Histogram of metadata aggregation durations by result",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 12),
	}, []string{"result"})
	coverCandidates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "book_catalog",
		Name:      "cover_candidates_total",
		Help:      "Cover candidates evaluated by outcome",
	}, []string{"outcome"})
	coverResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "book_catalog",
		Name:      "cover_resolutions_total",
		Help:      "Cover resolutions by outcome (persisted, cleared)",
	}, []string{"outcome"})
	classificationBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "book_catalog",
		Name:      "classification_batches_total",
		Help:      "Classification batches by outcome",
	}, []string{"outcome"})
	recrawlPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "book_catalog",
		Name:      "recrawl_passes_total",
		Help:      "Recrawl passes by flag and outcome",
	}, []string{"flag", "outcome"})

	booksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "book_catalog",
		Name:      "books_total",
		Help:      "Current total number of books in the catalog",
	})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(providerCalls, providerRetries, aggregationDuration,
			coverCandidates, coverResolutions, classificationBatches, recrawlPasses, booksGauge)
	})
}

// Provider helpers
func IncProviderCall(provider, capability, outcome string) {
	providerCalls.WithLabelValues(provider, capability, outcome).Inc()
}
func IncProviderRetry(provider string) { providerRetries.WithLabelValues(provider).Inc() }
func ObserveAggregation(result string, d time.Duration) {
	aggregationDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Pipeline helpers
func IncCoverCandidate(outcome string)      { coverCandidates.WithLabelValues(outcome).Inc() }
func IncCoverResolution(outcome string)     { coverResolutions.WithLabelValues(outcome).Inc() }
func IncClassificationBatch(outcome string) { classificationBatches.WithLabelValues(outcome).Inc() }
func IncRecrawlPass(flag, outcome string)   { recrawlPasses.WithLabelValues(flag, outcome).Inc() }

// Gauges
func SetBooks(n int) { booksGauge.Set(float64(n)) }
