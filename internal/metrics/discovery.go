// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StatusSuccess is the label value for successful operations.
const StatusSuccess = "success"

// StatusFailure is the label value for failed operations.
const StatusFailure = "failure"

// DiscoveryMetrics holds metrics related to candidate discovery scans.
type DiscoveryMetrics struct {
	// ScanLatencyHistogram tracks per-partition scan latencies.
	// Labels: partition (e.g. d1/men), status (success, failure)
	ScanLatencyHistogram *prometheus.HistogramVec

	// ScansTotal tracks total partition scans by partition and status.
	ScansTotal *prometheus.CounterVec

	// CandidatesTotal tracks total candidate game IDs enumerated per partition.
	CandidatesTotal *prometheus.CounterVec

	// DuplicatesTotal tracks games listed by more than one partition.
	DuplicatesTotal prometheus.Counter

	// PartialPartitionsTotal tracks partitions flagged partial after retries.
	PartialPartitionsTotal prometheus.Counter
}

// DefaultScanLatencyBuckets are latency buckets for partition scans. A scan is
// an HTTP round trip plus parsing, so the useful range is hundreds of ms to
// tens of seconds.
var DefaultScanLatencyBuckets = []float64{
	0.1,  // 100ms
	0.25, // 250ms
	0.5,  // 500ms
	1.0,  // 1s
	2.5,  // 2.5s
	5.0,  // 5s
	10.0, // 10s
	30.0, // 30s
	60.0, // 60s
}

// NewDiscoveryMetrics creates and registers discovery metrics.
// Uses promauto for automatic registration with the default registry.
func NewDiscoveryMetrics() *DiscoveryMetrics {
	return &DiscoveryMetrics{
		ScanLatencyHistogram: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "courtsync",
				Subsystem: "discovery",
				Name:      "scan_latency_seconds",
				Help:      "Partition scan latency in seconds, broken down by partition and status.",
				Buckets:   DefaultScanLatencyBuckets,
			},
			[]string{"partition", "status"},
		),
		ScansTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "courtsync",
				Subsystem: "discovery",
				Name:      "scans_total",
				Help:      "Total number of partition scans, broken down by partition and status.",
			},
			[]string{"partition", "status"},
		),
		CandidatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "courtsync",
				Subsystem: "discovery",
				Name:      "candidates_total",
				Help:      "Total candidate game IDs enumerated, broken down by partition.",
			},
			[]string{"partition"},
		),
		DuplicatesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "courtsync",
				Subsystem: "discovery",
				Name:      "duplicates_total",
				Help:      "Total games listed by more than one partition.",
			},
		),
		PartialPartitionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "courtsync",
				Subsystem: "discovery",
				Name:      "partial_partitions_total",
				Help:      "Total partitions flagged partial after exhausting retries.",
			},
		),
	}
}

// NewDiscoveryMetricsWithRegistry creates discovery metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewDiscoveryMetricsWithRegistry(reg prometheus.Registerer) *DiscoveryMetrics {
	scanLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "courtsync",
			Subsystem: "discovery",
			Name:      "scan_latency_seconds",
			Help:      "Partition scan latency in seconds, broken down by partition and status.",
			Buckets:   DefaultScanLatencyBuckets,
		},
		[]string{"partition", "status"},
	)

	scansTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtsync",
			Subsystem: "discovery",
			Name:      "scans_total",
			Help:      "Total number of partition scans, broken down by partition and status.",
		},
		[]string{"partition", "status"},
	)

	candidatesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtsync",
			Subsystem: "discovery",
			Name:      "candidates_total",
			Help:      "Total candidate game IDs enumerated, broken down by partition.",
		},
		[]string{"partition"},
	)

	duplicatesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courtsync",
			Subsystem: "discovery",
			Name:      "duplicates_total",
			Help:      "Total games listed by more than one partition.",
		},
	)

	partialTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courtsync",
			Subsystem: "discovery",
			Name:      "partial_partitions_total",
			Help:      "Total partitions flagged partial after exhausting retries.",
		},
	)

	reg.MustRegister(scanLatency)
	reg.MustRegister(scansTotal)
	reg.MustRegister(candidatesTotal)
	reg.MustRegister(duplicatesTotal)
	reg.MustRegister(partialTotal)

	return &DiscoveryMetrics{
		ScanLatencyHistogram:   scanLatency,
		ScansTotal:             scansTotal,
		CandidatesTotal:        candidatesTotal,
		DuplicatesTotal:        duplicatesTotal,
		PartialPartitionsTotal: partialTotal,
	}
}

// RecordScan records a partition scan latency and outcome. A failed scan also
// counts a partial partition.
func (m *DiscoveryMetrics) RecordScan(partition string, durationSeconds float64, success bool) {
	status := StatusFailure
	if success {
		status = StatusSuccess
	}
	m.ScanLatencyHistogram.WithLabelValues(partition, status).Observe(durationSeconds)
	m.ScansTotal.WithLabelValues(partition, status).Inc()
	if !success {
		m.PartialPartitionsTotal.Inc()
	}
}

// RecordCandidates records the number of candidates a partition enumerated.
func (m *DiscoveryMetrics) RecordCandidates(partition string, count int) {
	if count > 0 {
		m.CandidatesTotal.WithLabelValues(partition).Add(float64(count))
	}
}

// RecordDuplicates records games listed by more than one partition.
func (m *DiscoveryMetrics) RecordDuplicates(count int) {
	if count > 0 {
		m.DuplicatesTotal.Add(float64(count))
	}
}
