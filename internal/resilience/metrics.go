package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the call wrapper. Safe for
// concurrent use.
type Metrics struct {
	attemptsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	inFlight        prometheus.Gauge
	permitWait      prometheus.Histogram
	attemptDuration *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
}

// NewMetrics registers the wrapper's collectors on the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers the collectors on the supplied registerer.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		attemptsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubedebug_call_attempts_total",
				Help: "Total outbound call attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubedebug_call_retries_total",
				Help: "Total retries scheduled after transient failures",
			},
			[]string{"operation"},
		),
		inFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "kubedebug_calls_in_flight",
				Help: "Outbound calls currently holding a concurrency permit",
			},
		),
		permitWait: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kubedebug_permit_wait_seconds",
				Help:    "Time spent waiting for a concurrency permit",
				Buckets: prometheus.DefBuckets,
			},
		),
		attemptDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kubedebug_call_attempt_duration_seconds",
				Help:    "Duration of individual call attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		breakerState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kubedebug_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}
}

// SetBreakerState records a breaker state transition.
func (m *Metrics) SetBreakerState(name string, state float64) {
	m.breakerState.WithLabelValues(name).Set(state)
}
