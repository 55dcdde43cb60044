package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the kiosk's Prometheus collectors. All methods are safe on a
// nil receiver so services can run without metrics in tests.
type Metrics struct {
	TrustDecisions    *prometheus.CounterVec
	PinVerifications  *prometheus.CounterVec
	OTPRequests       *prometheus.CounterVec
	MatchAttempts     *prometheus.CounterVec
	MatchOutcomes     *prometheus.CounterVec
	MatchDuration     prometheus.Histogram
	AttendanceCommits *prometheus.CounterVec
	TerminalsBusy     prometheus.Gauge
	RegistrationPolls prometheus.Gauge
	HTTPLatency       *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TrustDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_trust_decisions_total",
			Help: "Device trust gate decisions by outcome",
		}, []string{"outcome"}),
		PinVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_pin_verifications_total",
			Help: "Branch PIN verification attempts by result",
		}, []string{"result"}),
		OTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_otp_operations_total",
			Help: "OTP registration operations by operation and result",
		}, []string{"operation", "result"}),
		MatchAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_match_attempts_total",
			Help: "Individual biometric detection attempts by outcome",
		}, []string{"outcome"}),
		MatchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_match_results_total",
			Help: "Biometric match loop results",
		}, []string{"result"}),
		MatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kiosk_match_duration_seconds",
			Help:    "Wall time spent in the biometric match loop",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
		}),
		AttendanceCommits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_attendance_commits_total",
			Help: "Attendance transitions by action and result",
		}, []string{"action", "result"}),
		TerminalsBusy: f.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_terminals_busy",
			Help: "Terminals currently running a clock action",
		}),
		RegistrationPolls: f.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_registration_polls_active",
			Help: "Registration polls currently waiting for an administrator",
		}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kiosk_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

func (m *Metrics) IncTrustDecision(outcome string) {
	if m != nil {
		m.TrustDecisions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncPinVerification(result string) {
	if m != nil {
		m.PinVerifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncOTP(operation, result string) {
	if m != nil {
		m.OTPRequests.WithLabelValues(operation, result).Inc()
	}
}

func (m *Metrics) IncMatchAttempt(outcome string) {
	if m != nil {
		m.MatchAttempts.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveMatch(result string, d time.Duration) {
	if m != nil {
		m.MatchOutcomes.WithLabelValues(result).Inc()
		m.MatchDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncAttendanceCommit(action, result string) {
	if m != nil {
		m.AttendanceCommits.WithLabelValues(action, result).Inc()
	}
}

func (m *Metrics) TerminalBusy(delta float64) {
	if m != nil {
		m.TerminalsBusy.Add(delta)
	}
}

func (m *Metrics) RegistrationPoll(delta float64) {
	if m != nil {
		m.RegistrationPolls.Add(delta)
	}
}

func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
	}
}
