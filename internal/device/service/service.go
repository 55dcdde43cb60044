// Package service is the admin-side registry of kiosk devices.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"kiosk/internal/device/models"
	otpmodels "kiosk/internal/otp/models"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/platform/audit"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/requestcontext"
)

// Store is the device persistence port.
type Store interface {
	Create(ctx context.Context, device *models.KioskDevice) error
	FindByID(ctx context.Context, kioskID id.KioskID) (*models.KioskDevice, error)
	FindActive(ctx context.Context, branchID id.BranchID, deviceID string) (*models.KioskDevice, error)
	ListByBranch(ctx context.Context, branchID id.BranchID) ([]*models.KioskDevice, error)
	Execute(ctx context.Context, kioskID id.KioskID, validate func(*models.KioskDevice) error, mutate func(*models.KioskDevice)) (*models.KioskDevice, error)
}

// OTPRequests looks up the OTP request a registration was approved from.
type OTPRequests interface {
	FindByID(ctx context.Context, requestID id.OTPRequestID) (*otpmodels.Request, error)
}

type Service struct {
	devices  Store
	requests OTPRequests
	logger   *slog.Logger
	auditor  audit.Emitter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditEmitter(emitter audit.Emitter) Option {
	return func(s *Service) {
		s.auditor = emitter
	}
}

// WithOTPRequests enables registration from a verified OTP request.
func WithOTPRequests(requests OTPRequests) Option {
	return func(s *Service) {
		s.requests = requests
	}
}

func New(devices Store, opts ...Option) *Service {
	s := &Service{devices: devices}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterCommand registers a kiosk. When OTPRequestID is set the device
// identifier, fingerprint and label default to what the kiosk declared.
type RegisterCommand struct {
	BranchID     id.BranchID
	DeviceID     string
	Fingerprint  string
	Label        string
	OTPRequestID *id.OTPRequestID
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*models.KioskDevice, error) {
	if cmd.OTPRequestID != nil {
		if err := s.applyOTPRequest(ctx, &cmd); err != nil {
			return nil, err
		}
	}
	device, err := models.NewKioskDevice(id.KioskID(uuid.New()), cmd.BranchID, cmd.DeviceID,
		cmd.Fingerprint, cmd.Label, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	if err := s.devices.Create(ctx, device); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an active device with this identifier is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register device")
	}
	s.logAudit(ctx, device, audit.ActionDeviceRegistered, "label", device.Label)
	return device, nil
}

func (s *Service) applyOTPRequest(ctx context.Context, cmd *RegisterCommand) error {
	if s.requests == nil {
		return dErrors.New(dErrors.CodeBadRequest, "registration from otp requests is not enabled")
	}
	req, err := s.requests.FindByID(ctx, *cmd.OTPRequestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "otp request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load otp request")
	}
	if req.Status != otpmodels.StatusVerified {
		return dErrors.New(dErrors.CodeConflict, "otp request has not been verified")
	}
	if cmd.BranchID.IsNil() {
		cmd.BranchID = req.BranchID
	}
	if cmd.BranchID != req.BranchID {
		return dErrors.New(dErrors.CodeForbidden, "otp request belongs to another branch")
	}
	if strings.TrimSpace(cmd.DeviceID) == "" {
		cmd.DeviceID = req.Device.DeviceID
	}
	if cmd.Fingerprint == "" {
		cmd.Fingerprint = req.Device.Fingerprint
	}
	if strings.TrimSpace(cmd.Label) == "" {
		cmd.Label = req.Device.Name
	}
	return nil
}

// Deactivate marks a device inactive. Already-inactive devices conflict.
func (s *Service) Deactivate(ctx context.Context, kioskID id.KioskID) (*models.KioskDevice, error) {
	device, err := s.devices.Execute(ctx, kioskID,
		func(d *models.KioskDevice) error {
			if err := d.CanDeactivate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "device is already inactive")
			}
			return nil
		},
		func(d *models.KioskDevice) {
			d.ApplyDeactivation()
		},
	)
	if err != nil {
		return nil, wrapDeviceErr(err)
	}
	s.logAudit(ctx, device, audit.ActionDeviceDeactivated)
	return device, nil
}

func (s *Service) ListByBranch(ctx context.Context, branchID id.BranchID) ([]*models.KioskDevice, error) {
	if branchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "branch id is required")
	}
	devices, err := s.devices.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list devices")
	}
	return devices, nil
}

// IsRegistered reports whether an active device exists for the pair.
// The registration poller calls this on every tick.
func (s *Service) IsRegistered(ctx context.Context, branchID id.BranchID, deviceID string) (bool, error) {
	_, err := s.devices.FindActive(ctx, branchID, deviceID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Service) logAudit(ctx context.Context, d *models.KioskDevice, action audit.Action, attrs ...any) {
	args := append([]any{"kiosk_id", d.ID.String()}, attrs...)
	audit.LogAudit(ctx, s.logger, s.auditor, audit.Entry{
		BranchID: d.BranchID,
		DeviceID: d.DeviceID,
		Action:   action,
		Status:   audit.StatusSuccess,
		Metadata: map[string]string{"kiosk_id": d.ID.String()},
	}, args...)
}

func wrapDeviceErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "device not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "device store error")
}
