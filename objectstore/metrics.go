package objectstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

// storeMetrics holds Prometheus metrics for object store operations.
type storeMetrics struct {
	requests *prometheus.CounterVec   // by operation and outcome
	latency  *prometheus.HistogramVec // by operation

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// newStoreMetrics creates and registers client metrics with the
// provided registerer. A nil registerer disables metrics.
func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	if reg == nil {
		return nil
	}

	m := &storeMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taalhuizen",
			Subsystem: "objectstore",
			Name:      "requests_total",
			Help:      "Total number of object store requests",
		}, []string{"operation", "outcome"}), // outcome: ok, not_found, conflict, transport

		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taalhuizen",
			Subsystem: "objectstore",
			Name:      "request_duration_seconds",
			Help:      "Object store request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		}, []string{"operation"}),

		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taalhuizen",
			Subsystem: "objectstore",
			Name:      "cache_hits_total",
			Help:      "Read cache hits",
		}),

		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taalhuizen",
			Subsystem: "objectstore",
			Name:      "cache_misses_total",
			Help:      "Read cache misses",
		}),
	}

	reg.MustRegister(m.requests, m.latency, m.cacheHits, m.cacheMisses)
	return m
}

func (m *storeMetrics) recordRequest(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// outcomeOf maps an operation error onto a metric label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrConflict):
		return "conflict"
	default:
		return "transport"
	}
}

func (m *storeMetrics) recordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *storeMetrics) recordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}
