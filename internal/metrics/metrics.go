// Package metrics holds the Prometheus instruments of the matrix engine.
// Instruments register with the default registry on package load and are
// served by promhttp at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recompute operation labels
const (
	OpFilter    = "filter"
	OpSort      = "sort"
	OpSelect    = "select_probes"
	OpAddTest   = "add_test"
	OpRemoveAll = "remove_tests"
)

var (
	// buildDuration tracks full matrix builds, value fetches included
	buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exprview_matrix_build_duration_seconds",
		Help:    "Matrix build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
	}, []string{"value_type"})

	recomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exprview_matrix_recompute_total",
		Help: "Total filtered view recomputations by operation",
	}, []string{"op"})

	rowsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exprview_matrix_rows_served_total",
		Help: "Total rows returned by windowed reads",
	})

	droppedProbes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exprview_matrix_dropped_probes_total",
		Help: "Total requested probes that produced no matrix row",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exprview_sessions_active",
		Help: "Number of open matrix sessions",
	})
)

// ObserveBuild records one finished build
func ObserveBuild(valueType string, elapsed time.Duration, dropped int) {
	buildDuration.WithLabelValues(valueType).Observe(elapsed.Seconds())
	if dropped > 0 {
		droppedProbes.Add(float64(dropped))
	}
}

// IncRecompute counts a view recomputation
func IncRecompute(op string) {
	recomputeTotal.WithLabelValues(op).Inc()
}

// AddRowsServed counts rows returned to a reader
func AddRowsServed(n int) {
	if n > 0 {
		rowsServed.Add(float64(n))
	}
}

// SetSessionsActive publishes the session count
func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}
