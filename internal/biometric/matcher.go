package biometric

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kiosk/internal/platform/metrics"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
)

var tracer = otel.Tracer("kiosk/biometric")

type Outcome string

const (
	OutcomeNoFace  Outcome = "no_face"
	OutcomeNoMatch Outcome = "no_match"
	OutcomeMatched Outcome = "matched"
)

// DetectionAttempt is one iteration of the matching loop. StaffID and
// Distance are set when a single face was found.
type DetectionAttempt struct {
	Index    int
	Outcome  Outcome
	StaffID  id.StaffID
	Distance float64
	At       time.Time
}

type Options struct {
	MaxAttempts int
	Delay       time.Duration
	Threshold   float64
}

func DefaultOptions() Options {
	return Options{MaxAttempts: 5, Delay: time.Second, Threshold: 0.6}
}

// Result is either a match or exhaustion with the last failure reason.
type Result struct {
	Matched    bool
	StaffID    id.StaffID
	Distance   float64
	Confidence float64
	Attempts   int
	LastReason Outcome
}

// Err maps exhaustion to a coded error; a match returns nil.
func (r Result) Err() error {
	switch {
	case r.Matched:
		return nil
	case r.LastReason == OutcomeNoMatch:
		return dErrors.New(dErrors.CodeNoMatchFound, "face not recognized")
	default:
		return dErrors.New(dErrors.CodeNoFaceDetected, "no face detected, look at the camera")
	}
}

type Matcher struct {
	extractor Extractor
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Matcher)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Matcher) {
		m.metrics = mt
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		m.now = now
	}
}

func NewMatcher(extractor Extractor, opts ...Option) *Matcher {
	m := &Matcher{extractor: extractor, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attempts lazily samples up to opts.MaxAttempts frames, waiting opts.Delay
// after each unsuccessful one. It stops after the first match, when the
// consumer stops, when the stream runs out of frames, or when ctx is done.
// Each call starts a fresh counter.
func (m *Matcher) Attempts(ctx context.Context, stream Stream, gallery Gallery, opts Options) iter.Seq[DetectionAttempt] {
	return func(yield func(DetectionAttempt) bool) {
		for i := 1; i <= opts.MaxAttempts; i++ {
			if ctx.Err() != nil {
				return
			}
			attempt, ok := m.attempt(ctx, i, stream, gallery, opts.Threshold)
			if !ok || ctx.Err() != nil {
				return
			}
			m.metrics.IncMatchAttempt(string(attempt.Outcome))
			if !yield(attempt) || attempt.Outcome == OutcomeMatched {
				return
			}
			if i < opts.MaxAttempts && !sleep(ctx, opts.Delay) {
				return
			}
		}
	}
}

// attempt samples one frame. It returns false when the stream has no frames
// left, so the caller stops without counting an attempt.
func (m *Matcher) attempt(ctx context.Context, index int, stream Stream, gallery Gallery, threshold float64) (DetectionAttempt, bool) {
	a := DetectionAttempt{Index: index, Outcome: OutcomeNoFace, Distance: math.Inf(1), At: m.now()}
	frame, err := stream.Next(ctx)
	if err != nil {
		if errors.Is(err, ErrStreamExhausted) {
			return a, false
		}
		if ctx.Err() == nil && m.logger != nil {
			m.logger.DebugContext(ctx, "frame sample failed", "attempt", index, "error", err)
		}
		return a, true
	}
	faces, err := m.extractor.Extract(frame)
	if err != nil || len(faces) != 1 {
		return a, true
	}
	staffID, distance, ok := gallery.Nearest(faces[0])
	a.Outcome = OutcomeNoMatch
	if !ok {
		return a, true
	}
	a.StaffID = staffID
	a.Distance = distance
	if distance <= threshold {
		a.Outcome = OutcomeMatched
	}
	return a, true
}

// Match drives Attempts to completion. It returns ctx.Err() when cancelled
// before a result.
func (m *Matcher) Match(ctx context.Context, stream Stream, gallery Gallery, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "biometric.Match", trace.WithAttributes(
		attribute.Int("max_attempts", opts.MaxAttempts),
		attribute.Int("gallery_size", len(gallery)),
	))
	defer span.End()

	start := m.now()
	var res Result
	for a := range m.Attempts(ctx, stream, gallery, opts) {
		res.Attempts = a.Index
		res.LastReason = a.Outcome
		if a.Outcome == OutcomeMatched {
			res.Matched = true
			res.StaffID = a.StaffID
			res.Distance = a.Distance
			res.Confidence = confidence(a.Distance)
		}
	}
	span.SetAttributes(attribute.Int("attempts", res.Attempts), attribute.Bool("matched", res.Matched))

	if !res.Matched && ctx.Err() != nil {
		m.metrics.ObserveMatch("cancelled", m.now().Sub(start))
		return res, ctx.Err()
	}
	outcome := "exhausted"
	if res.Matched {
		outcome = "matched"
	}
	m.metrics.ObserveMatch(outcome, m.now().Sub(start))
	return res, nil
}

func confidence(distance float64) float64 {
	return math.Max(0, math.Min(1, 1-distance))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
