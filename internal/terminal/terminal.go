package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	attendancemodels "kiosk/internal/attendance/models"
	attendanceservice "kiosk/internal/attendance/service"
	"kiosk/internal/biometric"
	otpservice "kiosk/internal/otp/service"
	"kiosk/internal/trust"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/requestcontext"
)

// Terminal is one kiosk. At most one operation runs on it at a time.
type Terminal struct {
	o        *Orchestrator
	deviceID string
	sem      *semaphore.Weighted

	mu       sync.Mutex
	snap     Snapshot
	request  trust.AuthorizeRequest
	decision trust.Decision
	poll     *otpservice.Poll
	reset    *time.Timer
	gen      uint64
}

func newTerminal(o *Orchestrator, deviceID string) *Terminal {
	return &Terminal{
		o:        o,
		deviceID: deviceID,
		sem:      semaphore.NewWeighted(1),
		snap:     Snapshot{State: StateIdle, DeviceID: deviceID, UpdatedAt: time.Now()},
	}
}

func (t *Terminal) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Decision returns the last trust decision for this terminal.
func (t *Terminal) Decision() trust.Decision {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.decision
}

func busy() error {
	return dErrors.New(dErrors.CodeTerminalBusy, "terminal is busy, please wait")
}

// Authorize runs the trust gate and moves the terminal to the matching state.
// A running registration poll is cancelled first.
func (t *Terminal) Authorize(ctx context.Context, req trust.AuthorizeRequest) (trust.Decision, error) {
	if !t.sem.TryAcquire(1) {
		return trust.Decision{}, busy()
	}
	defer t.sem.Release(1)

	t.stopRegistration()
	t.set(StateCheckingTrust, nil)
	d, err := t.o.gate.Authorize(ctx, req)
	if err != nil {
		t.settle(StateError, t.o.cfg.ErrorDisplay, withError(err))
		return trust.Decision{}, err
	}

	t.mu.Lock()
	t.request = req
	t.decision = d
	t.mu.Unlock()

	switch d.Outcome {
	case trust.OutcomeAuthorized:
		t.set(StateIdle, nil)
	case trust.OutcomeNeedsPin:
		t.set(StateIdle, withError(d.Err()))
	case trust.OutcomeNeedsRegistration:
		t.set(StateAwaitingRegistration, func(s *Snapshot) {
			s.Message = "this kiosk is not registered, request a registration code"
		})
	default:
		t.settle(StateError, t.o.cfg.ErrorDisplay, withError(d.Err()))
	}
	return d, nil
}

// AwaitRegistration starts polling for an administrator to register this
// kiosk at branchID, or at the hinted branch when branchID is nil. Once the
// device is registered the terminal re-runs Authorize with its last request.
func (t *Terminal) AwaitRegistration(ctx context.Context, branchID *id.BranchID) error {
	t.mu.Lock()
	if t.decision.Outcome != trust.OutcomeNeedsRegistration {
		t.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "terminal is not awaiting registration")
	}
	if t.poll != nil {
		t.mu.Unlock()
		return nil
	}
	if branchID == nil && t.decision.Branch != nil {
		branchID = &t.decision.Branch.ID
	}
	if branchID == nil || branchID.IsNil() {
		t.mu.Unlock()
		return dErrors.New(dErrors.CodeBadRequest, "branch id is required")
	}
	req := t.request
	if req.DeviceID == "" {
		t.mu.Unlock()
		return dErrors.New(dErrors.CodeBadRequest, "device id is required to await registration")
	}

	pollCtx := context.WithoutCancel(ctx)
	poll := t.o.registrations.AwaitRegistration(pollCtx, req.DeviceID, *branchID, func() {
		if t.o.logger != nil {
			t.o.logger.InfoContext(pollCtx, "kiosk registered", "device_id", req.DeviceID, "branch_id", branchID.String())
		}
	})
	t.poll = poll
	t.mu.Unlock()

	t.set(StateAwaitingRegistration, func(s *Snapshot) {
		s.Message = "waiting for an administrator to approve this kiosk"
	})
	go t.watch(pollCtx, poll, req)
	return nil
}

func (t *Terminal) watch(ctx context.Context, poll *otpservice.Poll, req trust.AuthorizeRequest) {
	err := poll.Wait()

	t.mu.Lock()
	current := t.poll == poll
	if current {
		t.poll = nil
	}
	t.mu.Unlock()
	if !current {
		return
	}

	switch {
	case err == nil:
		if _, aerr := t.Authorize(ctx, req); aerr != nil && t.o.logger != nil {
			t.o.logger.WarnContext(ctx, "re-authorization after registration failed",
				"device_id", req.DeviceID,
				"error", aerr,
			)
		}
	case dErrors.HasCode(err, dErrors.CodeRegistrationTimeout):
		t.settle(StateError, t.o.cfg.ErrorDisplay, withError(err))
	}
}

// CancelRegistration stops a running poll and returns the terminal to idle.
func (t *Terminal) CancelRegistration() {
	if t.stopRegistration() {
		t.set(StateIdle, nil)
	}
}

func (t *Terminal) stopRegistration() bool {
	t.mu.Lock()
	poll := t.poll
	t.poll = nil
	t.mu.Unlock()
	if poll == nil {
		return false
	}
	poll.Cancel()
	return true
}

type ClockOutcome string

const (
	ClockRecorded ClockOutcome = "recorded"
	ClockFailed   ClockOutcome = "failed"
)

// ClockResult is either a recorded transition or a coded failure.
type ClockResult struct {
	Outcome    ClockOutcome
	StaffID    id.StaffID
	StaffName  string
	Transition attendancemodels.Transition
	At         time.Time
	Record     *attendancemodels.Record
	Confidence float64
	Attempts   int
	Code       dErrors.Code
	Message    string
	err        error
}

func (r ClockResult) Err() error {
	return r.err
}

// ClockAction runs one attempt to clock in or out: trust re-check, session
// window check, camera acquisition, face match, then the attendance commit.
// The camera is released on every path.
func (t *Terminal) ClockAction(ctx context.Context, capture biometric.Capture) (result ClockResult) {
	ctx, span := tracer.Start(ctx, "terminal.ClockAction", trace.WithAttributes(
		attribute.String("device_id", t.deviceID),
	))
	defer func() {
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		span.End()
	}()

	if !t.sem.TryAcquire(1) {
		return rejected(busy())
	}
	defer t.sem.Release(1)

	decision := t.Decision()
	if decision.Outcome != trust.OutcomeAuthorized {
		err := decision.Err()
		if err == nil {
			err = dErrors.New(dErrors.CodeDeviceUnauthorized, "this kiosk has not been authorized")
		}
		return rejected(err)
	}
	decision, err := t.reauthorize(ctx)
	if err != nil {
		return t.fail(ctx, err)
	}
	if t.o.locker != nil {
		release, err := t.o.locker.Acquire(ctx, t.deviceID)
		if err != nil {
			return rejected(err)
		}
		defer release()
	}
	t.o.metrics.TerminalBusy(1)
	defer t.o.metrics.TerminalBusy(-1)

	now := requestcontext.Now(ctx)
	if err := t.o.recorder.CheckOpen(now); err != nil {
		return t.fail(ctx, err)
	}

	t.set(StateDetecting, nil)
	stream, gallery, err := t.prepare(ctx, capture, decision.Branch.ID)
	if err != nil {
		return t.fail(ctx, err)
	}
	defer stream.Release()

	match, err := t.o.matcher.Match(ctx, stream, gallery, t.o.cfg.Match)
	if err != nil {
		return t.failAfter(ctx, dErrors.Wrap(err, dErrors.CodeTimeout, "clock action cancelled"), match.Attempts)
	}
	if !match.Matched {
		return t.failAfter(ctx, match.Err(), match.Attempts)
	}

	t.set(StateRecording, nil)
	staff, err := t.o.staff.Get(ctx, match.StaffID)
	if err != nil {
		return t.fail(ctx, err)
	}
	rec, err := t.o.recorder.Today(ctx, staff.ID, now)
	if err != nil {
		return t.fail(ctx, err)
	}
	res := t.o.recorder.Resolve(now, rec)
	if !res.Valid {
		return t.fail(ctx, res.Err())
	}
	committed, err := t.o.recorder.Commit(ctx, attendanceservice.CommitCommand{
		StaffID:    staff.ID,
		Branch:     decision.Branch,
		DeviceID:   t.deviceID,
		Transition: res.Transition(),
		At:         now,
	})
	if err != nil {
		return t.fail(ctx, err)
	}

	result = ClockResult{
		Outcome:    ClockRecorded,
		StaffID:    staff.ID,
		StaffName:  staff.Name,
		Transition: res.Transition(),
		At:         now,
		Record:     committed,
		Confidence: match.Confidence,
		Attempts:   match.Attempts,
		Message: fmt.Sprintf("%s: %s %s recorded at %s", staff.Name, res.Session, res.Action.Label(),
			now.In(t.o.recorder.Location()).Format("15:04")),
	}
	t.settle(StateSuccess, t.o.cfg.SuccessDisplay, func(s *Snapshot) {
		s.StaffName = staff.Name
		s.Message = result.Message
	})
	if t.o.logger != nil {
		t.o.logger.InfoContext(ctx, "clock action recorded",
			"device_id", t.deviceID,
			"staff_id", staff.ID.String(),
			"transition", res.Transition().String(),
			"attempts", match.Attempts,
		)
	}
	return result
}

// reauthorize re-runs the trust gate with the request that authorized the
// terminal, so a device deactivated or a PIN token expired since then cannot
// clock. The refreshed decision replaces the cached one.
func (t *Terminal) reauthorize(ctx context.Context) (trust.Decision, error) {
	t.mu.Lock()
	req := t.request
	t.mu.Unlock()

	d, err := t.o.gate.Authorize(ctx, req)
	if err != nil {
		return trust.Decision{}, err
	}
	t.mu.Lock()
	t.decision = d
	t.mu.Unlock()
	if d.Outcome == trust.OutcomeAuthorized {
		return d, nil
	}
	if derr := d.Err(); derr != nil {
		return d, derr
	}
	return d, dErrors.New(dErrors.CodeDeviceUnauthorized, "this kiosk is no longer authorized")
}

// prepare opens the camera and loads the branch gallery concurrently.
func (t *Terminal) prepare(ctx context.Context, capture biometric.Capture, branchID id.BranchID) (biometric.Stream, biometric.Gallery, error) {
	var (
		stream  biometric.Stream
		gallery biometric.Gallery
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := capture.Acquire(gctx, t.o.cfg.Constraints)
		if err != nil {
			return cameraError(err)
		}
		stream = s
		return nil
	})
	g.Go(func() error {
		var err error
		gallery, err = t.o.staff.Gallery(gctx, branchID)
		return err
	})
	if err := g.Wait(); err != nil {
		if stream != nil {
			stream.Release()
		}
		return nil, nil, err
	}
	return stream, gallery, nil
}

func cameraError(err error) error {
	switch {
	case errors.Is(err, biometric.ErrCameraPermissionDenied):
		return dErrors.Wrap(err, dErrors.CodeCameraPermissionDenied, "camera access was denied, allow it and try again")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "clock action cancelled")
	default:
		return dErrors.Wrap(err, dErrors.CodeCameraUnavailable, "camera is unavailable")
	}
}

func rejected(err error) ClockResult {
	return ClockResult{
		Outcome: ClockFailed,
		Code:    dErrors.CodeOf(err),
		Message: dErrors.MessageOf(err),
		err:     err,
	}
}

func (t *Terminal) fail(ctx context.Context, err error) ClockResult {
	return t.failAfter(ctx, err, 0)
}

// failAfter fails a clock action that already sampled attempts frames.
func (t *Terminal) failAfter(ctx context.Context, err error, attempts int) ClockResult {
	t.settle(StateError, t.o.cfg.ErrorDisplay, withError(err))
	if t.o.logger != nil {
		t.o.logger.WarnContext(ctx, "clock action failed",
			"device_id", t.deviceID,
			"code", string(dErrors.CodeOf(err)),
			"attempts", attempts,
			"error", err,
		)
	}
	res := rejected(err)
	res.Attempts = attempts
	return res
}

func withError(err error) func(*Snapshot) {
	return func(s *Snapshot) {
		s.Code = dErrors.CodeOf(err)
		s.Message = dErrors.MessageOf(err)
	}
}

// set moves to state and cancels any pending reset.
func (t *Terminal) set(state State, mutate func(*Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLocked(state, mutate)
}

func (t *Terminal) setLocked(state State, mutate func(*Snapshot)) {
	t.gen++
	if t.reset != nil {
		t.reset.Stop()
		t.reset = nil
	}
	t.snap = Snapshot{
		State:     state,
		DeviceID:  t.deviceID,
		Trusted:   t.decision.Outcome == trust.OutcomeAuthorized,
		UpdatedAt: time.Now(),
	}
	if t.decision.Branch != nil {
		b := t.decision.Branch.ID
		t.snap.BranchID = &b
	}
	if mutate != nil {
		mutate(&t.snap)
	}
}

// settle shows a result state and returns to idle after display.
func (t *Terminal) settle(state State, display time.Duration, mutate func(*Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLocked(state, mutate)
	gen := t.gen
	t.reset = time.AfterFunc(display, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.gen == gen {
			t.setLocked(StateIdle, nil)
		}
	})
}

func (t *Terminal) close() {
	t.stopRegistration()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reset != nil {
		t.reset.Stop()
		t.reset = nil
	}
}
