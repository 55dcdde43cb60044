package terminal

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	attendancemodels "kiosk/internal/attendance/models"
	attendanceservice "kiosk/internal/attendance/service"
	attendancestore "kiosk/internal/attendance/store"
	"kiosk/internal/biometric"
	branchmodels "kiosk/internal/branch/models"
	branchstore "kiosk/internal/branch/store"
	devicemodels "kiosk/internal/device/models"
	deviceservice "kiosk/internal/device/service"
	devicestore "kiosk/internal/device/store"
	"kiosk/internal/otp/notifier"
	otpservice "kiosk/internal/otp/service"
	otpstore "kiosk/internal/otp/store"
	staffmodels "kiosk/internal/staff/models"
	staffservice "kiosk/internal/staff/service"
	staffstore "kiosk/internal/staff/store"
	"kiosk/internal/trust"
	"kiosk/internal/trust/pintoken"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/requestcontext"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

// countingCapture records acquisitions and delegates to a frame buffer.
type countingCapture struct {
	*biometric.FrameBuffer
	acquired atomic.Int32
	err      error
}

func (c *countingCapture) Acquire(ctx context.Context, cs biometric.Constraints) (biometric.Stream, error) {
	c.acquired.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.FrameBuffer.Acquire(ctx, cs)
}

func frames(values ...float64) *countingCapture {
	fs := make([]biometric.Frame, 0, len(values))
	for _, v := range values {
		fs = append(fs, biometric.Frame{Descriptors: []biometric.Embedding{{v}}})
	}
	return &countingCapture{FrameBuffer: biometric.NewFrameBuffer(fs)}
}

type TerminalSuite struct {
	suite.Suite
	ctx      context.Context
	day      time.Time
	branch   *branchmodels.Branch
	branches *branchstore.InMemory
	devices  *devicestore.InMemory
	records  *attendancestore.InMemory
	staff    *staffmodels.Staff
	orch     *Orchestrator
}

func TestTerminalSuite(t *testing.T) {
	suite.Run(t, new(TerminalSuite))
}

func (s *TerminalSuite) SetupTest() {
	s.day = time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	s.ctx = s.at(8, 0)
	s.branches = branchstore.NewInMemory()
	s.devices = devicestore.NewInMemory()
	s.records = attendancestore.NewInMemory()

	s.branch = &branchmodels.Branch{
		ID:        id.BranchID(uuid.New()),
		Name:      "Main",
		Active:    true,
		Policy:    branchmodels.SecurityPolicy{DeviceVerification: true, ActivityLogging: true},
		CreatedAt: s.day,
	}
	s.Require().NoError(s.branches.Create(s.ctx, s.branch))
	s.registerDevice("kiosk-1")

	s.orch = s.newOrchestrator(1000)
	s.T().Cleanup(s.orch.Close)
}

func (s *TerminalSuite) newOrchestrator(maxPolls int) *Orchestrator {
	staff := staffservice.New(staffstore.NewInMemory(), staffservice.WithEmbeddingDimensions(1))
	st, err := staff.Create(s.ctx, staffservice.CreateCommand{Name: "Ana Cruz", EmployeeNumber: "E-1"})
	s.Require().NoError(err)
	s.Require().NoError(staff.Enroll(s.ctx, st.ID, biometric.Embedding{0}))
	s.staff = st

	gate := trust.New(s.branches, s.devices, pintoken.NewService(testSigningKey))
	otp := otpservice.New(otpstore.NewInMemory(), s.branches,
		notifier.NewLogNotifier(slog.New(slog.DiscardHandler)),
		deviceservice.New(s.devices),
		otpservice.WithConfig(otpservice.Config{PollInterval: time.Millisecond, MaxPolls: maxPolls}),
	)
	return New(gate, otp,
		biometric.NewMatcher(biometric.DescriptorExtractor{}),
		staff,
		attendanceservice.New(s.records),
		WithConfig(Config{
			SuccessDisplay: 20 * time.Millisecond,
			ErrorDisplay:   40 * time.Millisecond,
			Match:          biometric.Options{MaxAttempts: 3, Threshold: 0.5},
			Constraints:    biometric.DefaultConstraints(),
		}),
	)
}

func (s *TerminalSuite) at(hour, minute int) context.Context {
	return requestcontext.WithTime(context.Background(), s.day.Add(time.Duration(hour)*time.Hour+time.Duration(minute)*time.Minute))
}

func (s *TerminalSuite) registerDevice(deviceID string) {
	d, err := devicemodels.NewKioskDevice(id.KioskID(uuid.New()), s.branch.ID, deviceID, "", "", s.day)
	s.Require().NoError(err)
	s.Require().NoError(s.devices.Create(s.ctx, d))
}

func (s *TerminalSuite) authorized(deviceID string) *Terminal {
	t := s.orch.Terminal(deviceID)
	d, err := t.Authorize(s.ctx, trust.AuthorizeRequest{DeviceID: deviceID})
	s.Require().NoError(err)
	s.Require().Equal(trust.OutcomeAuthorized, d.Outcome)
	return t
}

func (s *TerminalSuite) eventuallyIdle(t *Terminal) {
	s.Eventually(func() bool { return t.Snapshot().State == StateIdle }, time.Second, 5*time.Millisecond)
}

func (s *TerminalSuite) TestRegistryReturnsSameTerminal() {
	s.Same(s.orch.Terminal("kiosk-1"), s.orch.Terminal("kiosk-1"))
	s.NotSame(s.orch.Terminal("kiosk-1"), s.orch.Terminal("kiosk-2"))
}

func (s *TerminalSuite) TestAuthorize() {
	s.Run("registered kiosk is trusted and idle", func() {
		t := s.authorized("kiosk-1")
		snap := t.Snapshot()
		s.Equal(StateIdle, snap.State)
		s.True(snap.Trusted)
		s.Equal(s.branch.ID, *snap.BranchID)
	})

	s.Run("unknown kiosk awaits registration", func() {
		t := s.orch.Terminal("kiosk-new")
		d, err := t.Authorize(s.ctx, trust.AuthorizeRequest{DeviceID: "kiosk-new"})
		s.Require().NoError(err)
		s.Equal(trust.OutcomeNeedsRegistration, d.Outcome)
		s.Equal(StateAwaitingRegistration, t.Snapshot().State)
		s.False(t.Snapshot().Trusted)
	})
}

func (s *TerminalSuite) TestClockActionRecordsTransition() {
	t := s.authorized("kiosk-1")
	capture := frames(9, 0.1)

	res := t.ClockAction(s.at(8, 0), capture)
	s.Require().NoError(res.Err())
	s.Equal(ClockRecorded, res.Outcome)
	s.Equal(s.staff.ID, res.StaffID)
	s.Equal(attendancemodels.MorningIn, res.Transition)
	s.Equal(2, res.Attempts)
	s.Contains(res.Message, "Ana Cruz")
	s.Equal(StateSuccess, t.Snapshot().State)
	s.False(capture.Open(), "camera released")

	stored, err := s.records.Find(s.ctx, s.staff.ID, s.day)
	s.Require().NoError(err)
	s.NotNil(stored.MorningIn)
	s.Equal(s.branch.ID, *stored.BranchID)

	s.eventuallyIdle(t)

	res = t.ClockAction(s.at(11, 45), frames(0))
	s.Require().NoError(res.Err())
	s.Equal(attendancemodels.MorningOut, res.Transition)
}

func (s *TerminalSuite) TestClockActionFailures() {
	s.Run("untrusted terminal is rejected without a camera", func() {
		t := s.orch.Terminal("kiosk-unknown")
		capture := frames(0)
		res := t.ClockAction(s.ctx, capture)
		s.Equal(ClockFailed, res.Outcome)
		s.Equal(dErrors.CodeDeviceUnauthorized, res.Code)
		s.Zero(capture.acquired.Load())
		s.Equal(StateIdle, t.Snapshot().State)
	})

	s.Run("outside session windows never opens the camera", func() {
		t := s.authorized("kiosk-1")
		capture := frames(0)
		res := t.ClockAction(s.at(12, 30), capture)
		s.Equal(dErrors.CodeSessionUnavailable, res.Code)
		s.Zero(capture.acquired.Load())
		s.Equal(StateError, t.Snapshot().State)
		s.eventuallyIdle(t)
	})

	s.Run("unknown face exhausts attempts and releases the camera", func() {
		t := s.authorized("kiosk-1")
		capture := frames(5, 5, 5, 5)
		res := t.ClockAction(s.at(8, 0), capture)
		s.Equal(dErrors.CodeNoMatchFound, res.Code)
		s.Equal(int32(1), capture.acquired.Load())
		s.False(capture.Open())
		snap := t.Snapshot()
		s.Equal(StateError, snap.State)
		s.Equal(dErrors.CodeNoMatchFound, snap.Code)
		s.eventuallyIdle(t)
	})

	s.Run("single unrecognized frame reports no match with its attempt count", func() {
		t := s.authorized("kiosk-1")
		capture := frames(5)
		res := t.ClockAction(s.at(8, 0), capture)
		s.Equal(ClockFailed, res.Outcome)
		s.Equal(dErrors.CodeNoMatchFound, res.Code)
		s.Equal(1, res.Attempts)
		s.False(capture.Open())
		s.eventuallyIdle(t)
	})

	s.Run("failed match carries the attempts used", func() {
		t := s.authorized("kiosk-1")
		res := t.ClockAction(s.at(8, 0), frames(5, 5, 5, 5))
		s.Equal(dErrors.CodeNoMatchFound, res.Code)
		s.Equal(3, res.Attempts)
		s.eventuallyIdle(t)
	})

	s.Run("camera permission denied", func() {
		t := s.authorized("kiosk-1")
		capture := frames(0)
		capture.err = biometric.ErrCameraPermissionDenied
		res := t.ClockAction(s.at(8, 0), capture)
		s.Equal(dErrors.CodeCameraPermissionDenied, res.Code)
		s.eventuallyIdle(t)
	})

	s.Run("one operation per terminal", func() {
		t := s.authorized("kiosk-1")
		s.Require().True(t.sem.TryAcquire(1))
		defer t.sem.Release(1)

		res := t.ClockAction(s.at(8, 0), frames(0))
		s.Equal(dErrors.CodeTerminalBusy, res.Code)
		_, err := t.Authorize(s.ctx, trust.AuthorizeRequest{DeviceID: "kiosk-1"})
		s.True(dErrors.HasCode(err, dErrors.CodeTerminalBusy))
	})
}

func (s *TerminalSuite) TestClockActionRechecksTrust() {
	s.Run("deactivated device cannot clock", func() {
		s.registerDevice("kiosk-retired")
		t := s.authorized("kiosk-retired")

		stored, err := s.devices.FindActive(s.ctx, s.branch.ID, "kiosk-retired")
		s.Require().NoError(err)
		_, err = s.devices.Execute(s.ctx, stored.ID, (*devicemodels.KioskDevice).CanDeactivate, (*devicemodels.KioskDevice).ApplyDeactivation)
		s.Require().NoError(err)

		capture := frames(0)
		res := t.ClockAction(s.at(8, 5), capture)
		s.Equal(ClockFailed, res.Outcome)
		s.Equal(dErrors.CodeDeviceUnauthorized, res.Code)
		s.Zero(capture.acquired.Load())
		s.False(t.Snapshot().Trusted)

		_, err = s.records.Find(s.ctx, s.staff.ID, s.day)
		s.Error(err, "no attendance recorded")
	})

	s.Run("expired pin token cannot clock", func() {
		secure := &branchmodels.Branch{
			ID:        id.BranchID(uuid.New()),
			Name:      "Secure",
			Active:    true,
			Policy:    branchmodels.SecurityPolicy{DeviceVerification: true, PinRequired: true},
			CreatedAt: s.day.Add(time.Minute),
		}
		s.Require().NoError(s.branches.Create(s.ctx, secure))
		d, err := devicemodels.NewKioskDevice(id.KioskID(uuid.New()), secure.ID, "kiosk-pin", "", "", s.day)
		s.Require().NoError(err)
		s.Require().NoError(s.devices.Create(s.ctx, d))

		token, err := pintoken.NewService(testSigningKey).Issue(secure.ID, "kiosk-pin", s.day.Add(8*time.Hour), time.Minute)
		s.Require().NoError(err)

		t := s.orch.Terminal("kiosk-pin")
		decision, err := t.Authorize(s.at(8, 0), trust.AuthorizeRequest{DeviceID: "kiosk-pin", PinToken: token.Token})
		s.Require().NoError(err)
		s.Require().Equal(trust.OutcomeAuthorized, decision.Outcome)

		capture := frames(0)
		res := t.ClockAction(s.at(11, 0), capture)
		s.Equal(ClockFailed, res.Outcome)
		s.Equal(dErrors.CodePinRequired, res.Code)
		s.Zero(capture.acquired.Load())
		s.Equal(trust.OutcomeNeedsPin, t.Decision().Outcome)

		_, err = s.records.Find(s.ctx, s.staff.ID, s.day)
		s.Error(err, "no attendance recorded")
	})
}

func (s *TerminalSuite) TestErrorDisplaysLongerThanSuccess() {
	s.Greater(s.orch.cfg.ErrorDisplay, s.orch.cfg.SuccessDisplay)
	s.Greater(DefaultConfig().ErrorDisplay, DefaultConfig().SuccessDisplay)
}

func (s *TerminalSuite) TestRegistration() {
	hint := s.branch.ID

	s.Run("registration by an administrator re-authorizes the kiosk", func() {
		t := s.orch.Terminal("kiosk-new")
		_, err := t.Authorize(s.ctx, trust.AuthorizeRequest{DeviceID: "kiosk-new", BranchHint: &hint})
		s.Require().NoError(err)
		s.Require().NoError(t.AwaitRegistration(s.ctx, nil))
		s.Equal(StateAwaitingRegistration, t.Snapshot().State)

		s.registerDevice("kiosk-new")
		s.Eventually(func() bool { return t.Snapshot().Trusted }, time.Second, 5*time.Millisecond)
		s.Equal(StateIdle, t.Snapshot().State)
	})

	s.Run("branch is required without a hint", func() {
		t := s.orch.Terminal("kiosk-nohint")
		_, err := t.Authorize(s.ctx, trust.AuthorizeRequest{DeviceID: "kiosk-nohint"})
		s.Require().NoError(err)
		err = t.AwaitRegistration(s.ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("trusted terminals do not await registration", func() {
		t := s.authorized("kiosk-1")
		err := t.AwaitRegistration(s.ctx, &hint)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("cancel returns to idle", func() {
		t := s.orch.Terminal("kiosk-cancel")
		_, err := t.Authorize(s.ctx, trust.AuthorizeRequest{DeviceID: "kiosk-cancel", BranchHint: &hint})
		s.Require().NoError(err)
		s.Require().NoError(t.AwaitRegistration(s.ctx, nil))

		t.CancelRegistration()
		s.Equal(StateIdle, t.Snapshot().State)
		s.False(t.Snapshot().Trusted)
	})
}

func (s *TerminalSuite) TestRegistrationTimeout() {
	orch := s.newOrchestrator(2)
	defer orch.Close()
	hint := s.branch.ID

	t := orch.Terminal("kiosk-late")
	_, err := t.Authorize(s.ctx, trust.AuthorizeRequest{DeviceID: "kiosk-late", BranchHint: &hint})
	s.Require().NoError(err)
	s.Require().NoError(t.AwaitRegistration(s.ctx, nil))

	s.Eventually(func() bool {
		snap := t.Snapshot()
		return snap.State == StateError && snap.Code == dErrors.CodeRegistrationTimeout
	}, time.Second, time.Millisecond)
	s.eventuallyIdle(t)
}
