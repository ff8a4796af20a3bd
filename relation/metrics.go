package relation

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

// syncMetrics tracks relation mutations. All methods are safe on a
// nil receiver so metrics stay optional.
type syncMetrics struct {
	operations    *prometheus.CounterVec
	sideFailures  *prometheus.CounterVec
	statusUpdates *prometheus.CounterVec
	noops         *prometheus.CounterVec
}

func newSyncMetrics(reg prometheus.Registerer) *syncMetrics {
	if reg == nil {
		return nil
	}
	m := &syncMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taalhuizen",
			Subsystem: "relation",
			Name:      "operations_total",
			Help:      "Relation mutations by action, kind and outcome.",
		}, []string{"action", "kind", "outcome"}),
		sideFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taalhuizen",
			Subsystem: "relation",
			Name:      "side_failures_total",
			Help:      "Mutations that succeeded on one side only.",
		}, []string{"kind", "side"}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taalhuizen",
			Subsystem: "relation",
			Name:      "status_updates_total",
			Help:      "Participation status transitions persisted after a mutation.",
		}, []string{"from", "to"}),
		noops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taalhuizen",
			Subsystem: "relation",
			Name:      "noops_total",
			Help:      "Mutations short-circuited because the relation was already in the requested state.",
		}, []string{"action", "kind"}),
	}
	reg.MustRegister(m.operations, m.sideFailures, m.statusUpdates, m.noops)
	return m
}

func (m *syncMetrics) recordOperation(action Action, kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		switch {
		case errors.AsValidation(err) != nil:
			outcome = "invalid"
		case errors.IsTransient(err):
			outcome = "transient"
		default:
			outcome = "error"
		}
	}
	m.operations.WithLabelValues(string(action), kind, outcome).Inc()
}

func (m *syncMetrics) recordSideFailure(kind, side string) {
	if m == nil {
		return
	}
	m.sideFailures.WithLabelValues(kind, side).Inc()
}

func (m *syncMetrics) recordStatusUpdate(from, to string) {
	if m == nil {
		return
	}
	m.statusUpdates.WithLabelValues(from, to).Inc()
}

func (m *syncMetrics) recordNoop(action Action, kind string) {
	if m == nil {
		return
	}
	m.noops.WithLabelValues(string(action), kind).Inc()
}
