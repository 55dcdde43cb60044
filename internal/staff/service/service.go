// Package service enrolls staff and serves the face gallery to terminals.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"kiosk/internal/biometric"
	"kiosk/internal/staff/models"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/requestcontext"
)

// DefaultEmbeddingDimensions matches the face descriptor extractor's output.
const DefaultEmbeddingDimensions = 128

type Store interface {
	Create(ctx context.Context, st *models.Staff) error
	FindByID(ctx context.Context, staffID id.StaffID) (*models.Staff, error)
	AddEmbedding(ctx context.Context, staffID id.StaffID, e biometric.Embedding) error
	Gallery(ctx context.Context, branchID id.BranchID) (biometric.Gallery, error)
}

type Service struct {
	store      Store
	logger     *slog.Logger
	dimensions int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithEmbeddingDimensions sets the required descriptor length; zero accepts any.
func WithEmbeddingDimensions(n int) Option {
	return func(s *Service) {
		s.dimensions = n
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, dimensions: DefaultEmbeddingDimensions}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateCommand struct {
	Name           string
	EmployeeNumber string
	Role           string
	BranchID       *id.BranchID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*models.Staff, error) {
	st, err := models.NewStaff(id.StaffID(uuid.New()), cmd.Name, cmd.EmployeeNumber, cmd.Role,
		cmd.BranchID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, st); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "employee number already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create staff")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "staff created", "staff_id", st.ID.String())
	}
	return st, nil
}

func (s *Service) Get(ctx context.Context, staffID id.StaffID) (*models.Staff, error) {
	st, err := s.store.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "staff not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load staff")
	}
	return st, nil
}

// Enroll registers another face descriptor for a staff member.
func (s *Service) Enroll(ctx context.Context, staffID id.StaffID, e biometric.Embedding) error {
	if err := models.ValidateEmbedding(e, s.dimensions); err != nil {
		return err
	}
	if err := s.store.AddEmbedding(ctx, staffID, e); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "staff not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enroll embedding")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "staff embedding enrolled", "staff_id", staffID.String())
	}
	return nil
}

// Gallery returns the templates a terminal at branchID matches against.
func (s *Service) Gallery(ctx context.Context, branchID id.BranchID) (biometric.Gallery, error) {
	g, err := s.store.Gallery(ctx, branchID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load staff gallery")
	}
	return g, nil
}
