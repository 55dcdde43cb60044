// Package service commits attendance transitions.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kiosk/internal/attendance/models"
	"kiosk/internal/attendance/session"
	branchmodels "kiosk/internal/branch/models"
	"kiosk/internal/platform/metrics"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/platform/audit"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/requestcontext"
)

var tracer = otel.Tracer("kiosk/attendance")

type Store interface {
	Find(ctx context.Context, staffID id.StaffID, workDate time.Time) (*models.Record, error)
	Save(ctx context.Context, rec *models.Record, t models.Transition) error
}

type Service struct {
	store    Store
	logger   *slog.Logger
	auditor  audit.Emitter
	metrics  *metrics.Metrics
	location *time.Location
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

// WithLocation sets the organization's civil time zone. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, location: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the zone that work dates and session windows are evaluated in.
func (s *Service) Location() *time.Location {
	return s.location
}

// Today returns the staff member's record for the civil date of at. A missing
// record comes back empty.
func (s *Service) Today(ctx context.Context, staffID id.StaffID, at time.Time) (*models.Record, error) {
	workDate := models.WorkDate(at, s.location)
	rec, err := s.store.Find(ctx, staffID, workDate)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.NewRecord(staffID, workDate), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance record")
	}
	return rec, nil
}

// Resolve evaluates the session windows at the local time of at.
func (s *Service) Resolve(at time.Time, rec *models.Record) session.Resolution {
	return session.Resolve(at.In(s.location), rec)
}

// CheckOpen fails with CodeSessionUnavailable outside both session windows.
func (s *Service) CheckOpen(at time.Time) error {
	if _, reason, ok := session.Open(at.In(s.location)); !ok {
		return dErrors.New(dErrors.CodeSessionUnavailable, reason)
	}
	return nil
}

type CommitCommand struct {
	StaffID    id.StaffID
	Branch     *branchmodels.Branch
	DeviceID   string
	Transition models.Transition
	At         time.Time
}

// Commit sets one field of the day's record. The record's own ordering rules
// are checked first; the store then re-checks them atomically so a concurrent
// commit of the same field is rejected with CodeSessionAlreadyRecorded.
func (s *Service) Commit(ctx context.Context, cmd CommitCommand) (rec *models.Record, err error) {
	ctx, span := tracer.Start(ctx, "attendance.Commit", trace.WithAttributes(
		attribute.String("staff_id", cmd.StaffID.String()),
		attribute.String("transition", cmd.Transition.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if cmd.StaffID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "staff id is required")
	}
	at := cmd.At
	if at.IsZero() {
		at = requestcontext.Now(ctx)
	}

	rec, err = s.Today(ctx, cmd.StaffID, at)
	if err != nil {
		return nil, err
	}
	if err := rec.Apply(cmd.Transition, at); err != nil {
		s.rejected(ctx, cmd, err)
		return nil, err
	}
	if rec.BranchID == nil && cmd.Branch != nil {
		b := cmd.Branch.ID
		rec.BranchID = &b
	}

	if err := s.store.Save(ctx, rec, cmd.Transition); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			derr := dErrors.Wrap(err, dErrors.CodeSessionAlreadyRecorded,
				string(cmd.Transition.Session)+" "+cmd.Transition.Action.Label()+" already recorded")
			s.rejected(ctx, cmd, derr)
			return nil, derr
		}
		s.metrics.IncAttendanceCommit(cmd.Transition.String(), "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save attendance")
	}

	s.metrics.IncAttendanceCommit(cmd.Transition.String(), "recorded")
	attrs := []any{"transition", cmd.Transition.String(), "status_label", string(rec.Status)}
	if rec.TotalHours != nil {
		attrs = append(attrs, "total_hours", *rec.TotalHours, "overtime_hours", *rec.OvertimeHours)
	}
	s.logAudit(ctx, cmd, audit.StatusSuccess, attrs...)
	return rec, nil
}

func (s *Service) rejected(ctx context.Context, cmd CommitCommand, err error) {
	s.metrics.IncAttendanceCommit(cmd.Transition.String(), "rejected")
	s.logAudit(ctx, cmd, audit.StatusFailure,
		"transition", cmd.Transition.String(),
		"reason", dErrors.MessageOf(err),
	)
}

func (s *Service) logAudit(ctx context.Context, cmd CommitCommand, status audit.Status, attrs ...any) {
	action := audit.ActionTimeIn
	if cmd.Transition.Action == models.ActionTimeOut {
		action = audit.ActionTimeOut
	}
	entry := audit.Entry{
		DeviceID: cmd.DeviceID,
		StaffID:  cmd.StaffID,
		Action:   action,
		Status:   status,
		Metadata: map[string]string{"session": string(cmd.Transition.Session)},
	}
	if cmd.Branch != nil {
		if !cmd.Branch.Policy.ActivityLogging {
			return
		}
		entry.BranchID = cmd.Branch.ID
	}
	audit.LogAudit(ctx, s.logger, s.auditor, entry, append(attrs, "staff_id", cmd.StaffID.String())...)
}
