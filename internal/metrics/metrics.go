// Package metrics exposes Prometheus collectors for the fetch engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for itemsProcessedTotal.
const (
	OutcomeDone          = "done"
	OutcomeFetchFailed   = "fetch_failed"
	OutcomePersistFailed = "persist_failed"
)

var (
	itemsProcessedTotal  *prometheus.CounterVec
	claimBatchesTotal    *prometheus.CounterVec
	fetchDurationSeconds prometheus.Histogram
	activeWorkers        prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		itemsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stashy_items_processed_total",
				Help: "Total number of queue items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		claimBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stashy_claim_batches_total",
				Help: "Total number of claim calls, labeled by result (items or empty).",
			},
			[]string{"result"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stashy_fetch_duration_seconds",
				Help:    "Histogram of HTTP fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "stashy_active_workers",
				Help: "Number of worker goroutines currently running.",
			},
		)
	})
}

// ItemProcessed records one committed item outcome.
func ItemProcessed(outcome string) {
	if itemsProcessedTotal == nil {
		return
	}
	itemsProcessedTotal.WithLabelValues(outcome).Inc()
}

// ClaimBatch records the result of one claim call.
func ClaimBatch(n int) {
	if claimBatchesTotal == nil {
		return
	}
	result := "items"
	if n == 0 {
		result = "empty"
	}
	claimBatchesTotal.WithLabelValues(result).Inc()
}

// ObserveFetchDuration records the latency of one fetch.
func ObserveFetchDuration(d time.Duration) {
	if fetchDurationSeconds == nil {
		return
	}
	fetchDurationSeconds.Observe(d.Seconds())
}

// WorkerStarted increments the active worker gauge.
func WorkerStarted() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Inc()
}

// WorkerStopped decrements the active worker gauge.
func WorkerStopped() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Dec()
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
