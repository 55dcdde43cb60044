// Package terminal runs the kiosk's outer state machine: trust check,
// remote registration, then clock actions that go session check, face match
// and attendance commit.
package terminal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	attendancemodels "kiosk/internal/attendance/models"
	attendanceservice "kiosk/internal/attendance/service"
	"kiosk/internal/attendance/session"
	"kiosk/internal/biometric"
	otpservice "kiosk/internal/otp/service"
	"kiosk/internal/platform/metrics"
	staffmodels "kiosk/internal/staff/models"
	"kiosk/internal/trust"
	id "kiosk/pkg/domain"
)

var tracer = otel.Tracer("kiosk/terminal")

type Authorizer interface {
	Authorize(ctx context.Context, req trust.AuthorizeRequest) (trust.Decision, error)
}

type Registrations interface {
	AwaitRegistration(ctx context.Context, deviceID string, branchID id.BranchID, onRegistered func()) *otpservice.Poll
}

type Matcher interface {
	Match(ctx context.Context, stream biometric.Stream, gallery biometric.Gallery, opts biometric.Options) (biometric.Result, error)
}

type Staff interface {
	Get(ctx context.Context, staffID id.StaffID) (*staffmodels.Staff, error)
	Gallery(ctx context.Context, branchID id.BranchID) (biometric.Gallery, error)
}

type Recorder interface {
	Location() *time.Location
	CheckOpen(at time.Time) error
	Today(ctx context.Context, staffID id.StaffID, at time.Time) (*attendancemodels.Record, error)
	Resolve(at time.Time, rec *attendancemodels.Record) session.Resolution
	Commit(ctx context.Context, cmd attendanceservice.CommitCommand) (*attendancemodels.Record, error)
}

// Config controls result display and the match loop.
type Config struct {
	SuccessDisplay time.Duration
	ErrorDisplay   time.Duration
	Match          biometric.Options
	Constraints    biometric.Constraints
}

func DefaultConfig() Config {
	return Config{
		SuccessDisplay: 3 * time.Second,
		ErrorDisplay:   5 * time.Second,
		Match:          biometric.DefaultOptions(),
		Constraints:    biometric.DefaultConstraints(),
	}
}

// Orchestrator owns one Terminal per kiosk device ID.
type Orchestrator struct {
	gate          Authorizer
	registrations Registrations
	matcher       Matcher
	staff         Staff
	recorder      Recorder
	locker        Locker
	logger        *slog.Logger
	metrics       *metrics.Metrics
	cfg           Config

	mu        sync.Mutex
	terminals map[string]*Terminal
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLocker adds a cross-replica terminal lock on top of the in-process one.
func WithLocker(l Locker) Option {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg
	}
}

func New(gate Authorizer, registrations Registrations, matcher Matcher, staff Staff, recorder Recorder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gate:          gate,
		registrations: registrations,
		matcher:       matcher,
		staff:         staff,
		recorder:      recorder,
		cfg:           DefaultConfig(),
		terminals:     make(map[string]*Terminal),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Terminal returns the terminal for deviceID, creating it idle on first use.
func (o *Orchestrator) Terminal(deviceID string) *Terminal {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.terminals[deviceID]
	if !ok {
		t = newTerminal(o, deviceID)
		o.terminals[deviceID] = t
	}
	return t
}

// Close cancels outstanding registration polls and reset timers.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	terminals := make([]*Terminal, 0, len(o.terminals))
	for _, t := range o.terminals {
		terminals = append(terminals, t)
	}
	o.mu.Unlock()
	for _, t := range terminals {
		t.close()
	}
}
