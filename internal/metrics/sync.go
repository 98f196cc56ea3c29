package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics holds metrics related to the remote sync engine.
type SyncMetrics struct {
	// DecisionsTotal tracks reconcile decisions by action.
	// Labels: action (skip, upload, overwrite)
	DecisionsTotal *prometheus.CounterVec

	// AppliesTotal tracks apply attempts by action and status.
	AppliesTotal *prometheus.CounterVec

	// ConflictsTotal tracks applies that surfaced an unresolved conflict
	// after the refresh-and-retry.
	ConflictsTotal prometheus.Counter
}

// NewSyncMetrics creates and registers sync metrics.
// Uses promauto for automatic registration with the default registry.
func NewSyncMetrics() *SyncMetrics {
	return &SyncMetrics{
		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "courtsync",
				Subsystem: "sync",
				Name:      "decisions_total",
				Help:      "Total reconcile decisions, broken down by action.",
			},
			[]string{"action"},
		),
		AppliesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "courtsync",
				Subsystem: "sync",
				Name:      "applies_total",
				Help:      "Total apply attempts, broken down by action and status.",
			},
			[]string{"action", "status"},
		),
		ConflictsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "courtsync",
				Subsystem: "sync",
				Name:      "conflicts_total",
				Help:      "Total applies that ended in an unresolved conflict.",
			},
		),
	}
}

// NewSyncMetricsWithRegistry creates sync metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewSyncMetricsWithRegistry(reg prometheus.Registerer) *SyncMetrics {
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtsync",
			Subsystem: "sync",
			Name:      "decisions_total",
			Help:      "Total reconcile decisions, broken down by action.",
		},
		[]string{"action"},
	)

	appliesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtsync",
			Subsystem: "sync",
			Name:      "applies_total",
			Help:      "Total apply attempts, broken down by action and status.",
		},
		[]string{"action", "status"},
	)

	conflictsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courtsync",
			Subsystem: "sync",
			Name:      "conflicts_total",
			Help:      "Total applies that ended in an unresolved conflict.",
		},
	)

	reg.MustRegister(decisionsTotal)
	reg.MustRegister(appliesTotal)
	reg.MustRegister(conflictsTotal)

	return &SyncMetrics{
		DecisionsTotal: decisionsTotal,
		AppliesTotal:   appliesTotal,
		ConflictsTotal: conflictsTotal,
	}
}

// RecordDecision records a reconcile decision.
func (m *SyncMetrics) RecordDecision(action string) {
	m.DecisionsTotal.WithLabelValues(action).Inc()
}

// RecordApply records an apply attempt outcome.
func (m *SyncMetrics) RecordApply(action string, success bool) {
	status := StatusFailure
	if success {
		status = StatusSuccess
	}
	m.AppliesTotal.WithLabelValues(action, status).Inc()
}

// RecordConflict records an unresolved conflict.
func (m *SyncMetrics) RecordConflict() {
	m.ConflictsTotal.Inc()
}
