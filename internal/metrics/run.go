package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunMetrics holds metrics related to partition plan execution.
type RunMetrics struct {
	// ItemsTotal tracks work items by action and outcome.
	// Labels: action (fetch, copy), outcome (ok, skipped, failed)
	ItemsTotal *prometheus.CounterVec

	// PartitionDuration tracks how long each partition's plan took,
	// broken down by outcome (clean, failed).
	PartitionDuration *prometheus.HistogramVec
}

// Work item outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Partition outcome label values.
const (
	OutcomeClean         = "clean"
	OutcomePartitionFail = "failed"
)

// DefaultPartitionDurationBuckets are duration buckets for whole-partition
// runs, which can take from seconds to tens of minutes on busy dates.
var DefaultPartitionDurationBuckets = []float64{
	1.0,    // 1s
	5.0,    // 5s
	15.0,   // 15s
	30.0,   // 30s
	60.0,   // 1m
	120.0,  // 2m
	300.0,  // 5m
	600.0,  // 10m
	1200.0, // 20m
	1800.0, // 30m
}

// NewRunMetrics creates and registers run metrics.
// Uses promauto for automatic registration with the default registry.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{
		ItemsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "courtsync",
				Subsystem: "run",
				Name:      "items_total",
				Help:      "Total work items processed, broken down by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		PartitionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "courtsync",
				Subsystem: "run",
				Name:      "partition_duration_seconds",
				Help:      "Duration of a partition's plan execution, broken down by outcome.",
				Buckets:   DefaultPartitionDurationBuckets,
			},
			[]string{"outcome"},
		),
	}
}

// NewRunMetricsWithRegistry creates run metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewRunMetricsWithRegistry(reg prometheus.Registerer) *RunMetrics {
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtsync",
			Subsystem: "run",
			Name:      "items_total",
			Help:      "Total work items processed, broken down by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	partitionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "courtsync",
			Subsystem: "run",
			Name:      "partition_duration_seconds",
			Help:      "Duration of a partition's plan execution, broken down by outcome.",
			Buckets:   DefaultPartitionDurationBuckets,
		},
		[]string{"outcome"},
	)

	reg.MustRegister(itemsTotal)
	reg.MustRegister(partitionDuration)

	return &RunMetrics{
		ItemsTotal:        itemsTotal,
		PartitionDuration: partitionDuration,
	}
}

// RecordItem records a single work item outcome.
func (m *RunMetrics) RecordItem(action, outcome string) {
	m.ItemsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordPartition records a partition's execution duration and outcome.
func (m *RunMetrics) RecordPartition(outcome string, durationSeconds float64) {
	m.PartitionDuration.WithLabelValues(outcome).Observe(durationSeconds)
}
