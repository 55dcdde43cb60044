package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for activity-log publishing.
type Metrics struct {
	Persisted             prometheus.Counter
	Dropped               prometheus.Counter
	CircuitBreakerDropped prometheus.Counter
	PersistFailures       prometheus.Counter
	CircuitBreakerState   prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with activity-log metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Persisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_activity_log_persisted_total",
			Help: "Total number of activity-log entries persisted",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_activity_log_buffer_dropped_total",
			Help: "Total number of activity-log entries dropped because the buffer was full",
		}),
		CircuitBreakerDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_activity_log_circuit_breaker_dropped_total",
			Help: "Total number of activity-log entries dropped while the store circuit was open",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_activity_log_persist_failures_total",
			Help: "Total number of activity-log persistence failures",
		}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_activity_log_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) incPersisted() {
	if m != nil {
		m.Persisted.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) incCircuitBreakerDropped() {
	if m != nil {
		m.CircuitBreakerDropped.Inc()
	}
}

func (m *Metrics) incPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) setCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
