// Package service implements remote approval of unrecognized kiosks: a
// short code is issued to branch administrators, an administrator reads it
// back on the kiosk, and the kiosk waits until the device is registered.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	branchmodels "kiosk/internal/branch/models"
	"kiosk/internal/otp/models"
	"kiosk/internal/platform/metrics"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/platform/audit"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/requestcontext"
)

var tracer = otel.Tracer("kiosk/otp")

// Store persists OTP requests. MarkVerified and MarkExpired are conditional
// and return sentinel.ErrConflict when the request is no longer pending.
// FailPending closes every pending request a device holds at a branch.
type Store interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, requestID id.OTPRequestID) (*models.Request, error)
	FindPending(ctx context.Context, branchID id.BranchID, code string) (*models.Request, error)
	MarkVerified(ctx context.Context, requestID id.OTPRequestID, now time.Time) error
	MarkExpired(ctx context.Context, requestID id.OTPRequestID) error
	FailPending(ctx context.Context, branchID id.BranchID, deviceID string) (int, error)
}

type Branches interface {
	FindByID(ctx context.Context, branchID id.BranchID) (*branchmodels.Branch, error)
}

// Notifier delivers a code to the responsible administrators.
type Notifier interface {
	Deliver(ctx context.Context, recipients []string, code string, info models.Notification) error
}

// RegistrationChecker reports whether an active device exists for (branch, device).
type RegistrationChecker interface {
	IsRegistered(ctx context.Context, branchID id.BranchID, deviceID string) (bool, error)
}

type Config struct {
	Window       time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

const (
	defaultPollInterval = 3 * time.Second
	defaultMaxPolls     = 100
)

type Service struct {
	store    Store
	branches Branches
	notifier Notifier
	checker  RegistrationChecker
	cfg      Config
	logger   *slog.Logger
	auditor  audit.Emitter
	metrics  *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func New(store Store, branches Branches, notifier Notifier, checker RegistrationChecker, opts ...Option) *Service {
	s := &Service{
		store:    store,
		branches: branches,
		notifier: notifier,
		checker:  checker,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Window <= 0 {
		s.cfg.Window = models.DefaultWindow
	}
	if s.cfg.PollInterval <= 0 {
		s.cfg.PollInterval = defaultPollInterval
	}
	if s.cfg.MaxPolls <= 0 {
		s.cfg.MaxPolls = defaultMaxPolls
	}
	return s
}

// Request issues a pending code for the branch and sends it to the branch
// administrators. Delivery failure is logged; the request is still issued.
func (s *Service) Request(ctx context.Context, branchID id.BranchID, device models.DeviceMetadata) (*models.Request, error) {
	ctx, span := tracer.Start(ctx, "otp.Request", trace.WithAttributes(
		attribute.String("branch_id", branchID.String()),
	))
	defer span.End()

	if device.DeviceID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "device identifier is required")
	}
	branch, err := s.branches.FindByID(ctx, branchID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "branch not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load branch")
	}
	if !branch.Active {
		return nil, dErrors.New(dErrors.CodeNotFound, "branch not found")
	}

	code, err := generateCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	req, err := models.NewRequest(id.OTPRequestID(uuid.New()), code, branchID, device,
		requestcontext.Now(ctx), s.cfg.Window)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, req); err != nil {
		s.metrics.IncOTP("request", "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save otp request")
	}

	info := models.Notification{
		BranchID:   branch.ID,
		BranchName: branch.Name,
		DeviceName: device.Name,
		DeviceType: device.Type,
		Location:   device.Location,
		ExpiresAt:  req.ExpiresAt,
	}
	if err := s.notifier.Deliver(ctx, branch.AdminRecipients, code, info); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to deliver otp code",
			"branch_id", branchID.String(),
			"otp_request_id", req.ID.String(),
			"error", err,
		)
	}

	s.metrics.IncOTP("request", "issued")
	s.logAudit(ctx, branch, branchID, device.DeviceID, audit.ActionOTPRequested, audit.StatusSuccess,
		"otp_request_id", req.ID.String())
	return req, nil
}

// Verify consumes a pending, unexpired code for the branch and returns the
// metadata the kiosk declared. The device identifier is not checked.
func (s *Service) Verify(ctx context.Context, code string, branchID id.BranchID) (*models.Request, error) {
	ctx, span := tracer.Start(ctx, "otp.Verify", trace.WithAttributes(
		attribute.String("branch_id", branchID.String()),
	))
	defer span.End()

	branch, err := s.branches.FindByID(ctx, branchID)
	if err != nil {
		branch = nil
		if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to load branch for otp verification",
				"branch_id", branchID.String(),
				"error", err,
			)
		}
	}
	now := requestcontext.Now(ctx)

	req, err := s.store.FindPending(ctx, branchID, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.rejectCode(ctx, branch, branchID, "", "unknown code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load otp request")
	}
	if req.IsExpired(now) {
		if err := s.store.MarkExpired(ctx, req.ID); err != nil && !errors.Is(err, sentinel.ErrConflict) && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to expire otp request", "otp_request_id", req.ID.String(), "error", err)
		}
		return nil, s.rejectCode(ctx, branch, branchID, req.Device.DeviceID, "expired code")
	}
	if err := s.store.MarkVerified(ctx, req.ID, now); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, s.rejectCode(ctx, branch, branchID, req.Device.DeviceID, "code already used")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify otp request")
	}
	req.ApplyVerified(now)

	s.metrics.IncOTP("verify", "verified")
	s.logAudit(ctx, branch, branchID, req.Device.DeviceID, audit.ActionOTPVerified, audit.StatusSuccess,
		"otp_request_id", req.ID.String())
	return req, nil
}

func (s *Service) rejectCode(ctx context.Context, branch *branchmodels.Branch, branchID id.BranchID, deviceID, reason string) error {
	s.metrics.IncOTP("verify", "invalid")
	s.logAudit(ctx, branch, branchID, deviceID, audit.ActionOTPFailed, audit.StatusFailure, "reason", reason)
	return dErrors.New(dErrors.CodeOTPInvalid, "invalid or expired code")
}

// logAudit records the entry unless the branch disabled activity logging.
// A branch that could not be loaded is always logged.
func (s *Service) logAudit(ctx context.Context, branch *branchmodels.Branch, branchID id.BranchID, deviceID string, action audit.Action, status audit.Status, attrs ...any) {
	if branch != nil && !branch.Policy.ActivityLogging {
		return
	}
	audit.LogAudit(ctx, s.logger, s.auditor, audit.Entry{
		BranchID: branchID,
		DeviceID: deviceID,
		Action:   action,
		Status:   status,
	}, attrs...)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
