package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kiosk/internal/device/store"
	otpmodels "kiosk/internal/otp/models"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/platform/audit"
	auditmemory "kiosk/pkg/platform/audit/store/memory"
	"kiosk/pkg/platform/sentinel"
)

type stubRequests map[id.OTPRequestID]*otpmodels.Request

func (s stubRequests) FindByID(_ context.Context, requestID id.OTPRequestID) (*otpmodels.Request, error) {
	r, ok := s[requestID]
	if !ok {
		return nil, fmt.Errorf("otp request: %w", sentinel.ErrNotFound)
	}
	return r, nil
}

type DeviceServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	auditLog *auditmemory.InMemoryStore
	requests stubRequests
	service  *Service
	branch   id.BranchID
}

func TestDeviceServiceSuite(t *testing.T) {
	suite.Run(t, new(DeviceServiceSuite))
}

func (s *DeviceServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.auditLog = auditmemory.NewInMemoryStore()
	s.requests = stubRequests{}
	s.branch = id.BranchID(uuid.New())
	s.service = New(s.store,
		WithAuditEmitter(auditEmitter{s.auditLog}),
		WithOTPRequests(s.requests),
	)
}

type auditEmitter struct{ store audit.Store }

func (e auditEmitter) Emit(ctx context.Context, entry audit.Entry) error {
	return e.store.Append(ctx, entry)
}

func (s *DeviceServiceSuite) TestRegister() {
	s.Run("registers and logs the registration", func() {
		d, err := s.service.Register(s.ctx, RegisterCommand{BranchID: s.branch, DeviceID: "kiosk-1", Label: "Lobby"})
		s.Require().NoError(err)
		s.True(d.Active)

		registered, err := s.service.IsRegistered(s.ctx, s.branch, "kiosk-1")
		s.Require().NoError(err)
		s.True(registered)
		s.Contains(s.auditLog.Actions(), audit.ActionDeviceRegistered)
	})

	s.Run("duplicate active registration conflicts", func() {
		_, err := s.service.Register(s.ctx, RegisterCommand{BranchID: s.branch, DeviceID: "kiosk-1"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing identifier is a validation error", func() {
		_, err := s.service.Register(s.ctx, RegisterCommand{BranchID: s.branch})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DeviceServiceSuite) TestRegisterFromOTPRequest() {
	now := time.Now()
	verified, err := otpmodels.NewRequest(id.OTPRequestID(uuid.New()), "112233", s.branch,
		otpmodels.DeviceMetadata{DeviceID: "kiosk-otp", Fingerprint: "fp", Name: "Chrome on Linux"}, now, time.Minute)
	s.Require().NoError(err)
	verified.ApplyVerified(now)
	s.requests[verified.ID] = verified

	pending, err := otpmodels.NewRequest(id.OTPRequestID(uuid.New()), "445566", s.branch,
		otpmodels.DeviceMetadata{DeviceID: "kiosk-pending"}, now, time.Minute)
	s.Require().NoError(err)
	s.requests[pending.ID] = pending

	s.Run("copies declared metadata", func() {
		d, err := s.service.Register(s.ctx, RegisterCommand{OTPRequestID: &verified.ID})
		s.Require().NoError(err)
		s.Equal(s.branch, d.BranchID)
		s.Equal("kiosk-otp", d.DeviceID)
		s.Equal("fp", d.Fingerprint)
		s.Equal("Chrome on Linux", d.Label)
	})

	s.Run("pending request cannot be used", func() {
		_, err := s.service.Register(s.ctx, RegisterCommand{OTPRequestID: &pending.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("branch mismatch is forbidden", func() {
		_, err := s.service.Register(s.ctx, RegisterCommand{
			BranchID:     id.BranchID(uuid.New()),
			OTPRequestID: &verified.ID,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown request is not found", func() {
		unknown := id.OTPRequestID(uuid.New())
		_, err := s.service.Register(s.ctx, RegisterCommand{OTPRequestID: &unknown})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *DeviceServiceSuite) TestDeactivate() {
	d, err := s.service.Register(s.ctx, RegisterCommand{BranchID: s.branch, DeviceID: "kiosk-2"})
	s.Require().NoError(err)

	s.Run("deactivates once", func() {
		out, err := s.service.Deactivate(s.ctx, d.ID)
		s.Require().NoError(err)
		s.False(out.Active)

		registered, err := s.service.IsRegistered(s.ctx, s.branch, "kiosk-2")
		s.Require().NoError(err)
		s.False(registered)
		s.Contains(s.auditLog.Actions(), audit.ActionDeviceDeactivated)
	})

	s.Run("second deactivation conflicts", func() {
		_, err := s.service.Deactivate(s.ctx, d.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown device is not found", func() {
		_, err := s.service.Deactivate(s.ctx, id.KioskID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
