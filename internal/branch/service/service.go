// Package service manages branches and their security policy.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kiosk/internal/branch/models"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/email"
	"kiosk/pkg/geo"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/requestcontext"
)

// Store is the branch persistence port.
type Store interface {
	Create(ctx context.Context, branch *models.Branch) error
	FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error)
	ListActive(ctx context.Context) ([]*models.Branch, error)
	UpdatePolicy(ctx context.Context, branchID id.BranchID, policy models.SecurityPolicy) error
}

// Service is used by the admin API and by the trust gate for lookups.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PolicyInput carries a policy with a plaintext PIN. The PIN is hashed before storage.
type PolicyInput struct {
	DeviceVerification bool
	GeoVerification    bool
	GeoRadiusMeters    float64
	PinRequired        bool
	Pin                string
	PinCacheSeconds    int
	ActivityLogging    bool
}

type CreateCommand struct {
	Name            string
	Location        *geo.Point
	Policy          PolicyInput
	AdminRecipients []string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*models.Branch, error) {
	policy, err := buildPolicy(cmd.Policy)
	if err != nil {
		return nil, err
	}
	recipients, err := email.Normalize(cmd.AdminRecipients)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid admin recipient")
	}
	branch, err := models.NewBranch(id.BranchID(uuid.New()), cmd.Name, cmd.Location, policy,
		recipients, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, branch); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "branch already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create branch")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "branch created", "branch_id", branch.ID.String())
	}
	return branch, nil
}

func (s *Service) Get(ctx context.Context, branchID id.BranchID) (*models.Branch, error) {
	if branchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "branch id is required")
	}
	b, err := s.store.FindByID(ctx, branchID)
	if err != nil {
		return nil, wrapBranchErr(err)
	}
	return b, nil
}

func (s *Service) ListActive(ctx context.Context) ([]*models.Branch, error) {
	branches, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list branches")
	}
	return branches, nil
}

// UpdatePolicy replaces a branch's security policy. An empty PIN keeps the
// existing hash when the branch already requires one.
func (s *Service) UpdatePolicy(ctx context.Context, branchID id.BranchID, in PolicyInput) (*models.Branch, error) {
	b, err := s.Get(ctx, branchID)
	if err != nil {
		return nil, err
	}
	keepHash := in.PinRequired && in.Pin == "" && b.Policy.PinHash != ""
	if keepHash {
		in.Pin = ""
	}
	policy, err := buildPolicy(PolicyInput{
		DeviceVerification: in.DeviceVerification,
		GeoVerification:    in.GeoVerification,
		GeoRadiusMeters:    in.GeoRadiusMeters,
		PinRequired:        in.PinRequired && !keepHash,
		Pin:                in.Pin,
		PinCacheSeconds:    in.PinCacheSeconds,
		ActivityLogging:    in.ActivityLogging,
	})
	if err != nil {
		return nil, err
	}
	if keepHash {
		policy.PinRequired = true
		policy.PinHash = b.Policy.PinHash
		if policy.PinCacheDuration <= 0 {
			policy.PinCacheDuration = models.DefaultPinCacheDuration
		}
	}
	b.Policy = policy
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePolicy(ctx, branchID, policy); err != nil {
		return nil, wrapBranchErr(err)
	}
	return b, nil
}

func buildPolicy(in PolicyInput) (models.SecurityPolicy, error) {
	policy := models.SecurityPolicy{
		DeviceVerification: in.DeviceVerification,
		GeoVerification:    in.GeoVerification,
		GeoRadiusMeters:    in.GeoRadiusMeters,
		PinRequired:        in.PinRequired,
		PinCacheDuration:   secondsOf(in.PinCacheSeconds),
		ActivityLogging:    in.ActivityLogging,
	}
	if in.PinRequired {
		hash, err := models.HashPin(in.Pin)
		if err != nil {
			return models.SecurityPolicy{}, err
		}
		policy.PinHash = hash
	}
	return policy, nil
}

func wrapBranchErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "branch not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "branch store error")
}

func secondsOf(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
