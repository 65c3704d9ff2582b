// Package metrics provides Prometheus instrumentation for polystore
// connectors and the relational connection pool.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationLatency tracks the distribution of backend operation
	// latencies in seconds.
	// Labels: backend (relational/mongodb/azure), operation, status
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polystore_operation_latency_seconds",
			Help:    "Backend operation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"backend", "operation", "status"},
	)

	// RowsWritten tracks rows or entities written per backend operation.
	// Labels: backend, operation
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polystore_rows_written_total",
			Help: "Total rows or entities written",
		},
		[]string{"backend", "operation"},
	)

	// PoolAcquires counts connection acquisitions from the relational pool.
	// Labels: outcome (hit/error)
	PoolAcquires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polystore_pool_acquires_total",
			Help: "Total connection acquisitions from the pool",
		},
		[]string{"outcome"},
	)

	// PoolReleases counts connections returned to the relational pool
	PoolReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polystore_pool_releases_total",
			Help: "Total connections returned to the pool",
		},
	)

	// Reconnects counts implicit reconnections performed by connectors.
	// Labels: backend
	Reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polystore_reconnects_total",
			Help: "Total implicit reconnections",
		},
		[]string{"backend"},
	)
)

// ObserveOperation records one completed backend operation.
func ObserveOperation(backend, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	OperationLatency.WithLabelValues(backend, operation, status).
		Observe(time.Since(start).Seconds())
}
