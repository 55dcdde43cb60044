package lockout

import (
	"context"
	"log/slog"
	"time"

	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/requestcontext"
)

// Store persists lockout records. Get returns (nil, nil) for unknown keys.
// RecordFailure increments atomically, restarting the count when the
// previous failure is older than window.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*Record, error)
	Lock(ctx context.Context, key string, until time.Time) error
	Clear(ctx context.Context, key string) error
}

type Service struct {
	store  Store
	config Config
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, config: DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check returns a pin_locked error while the key is locked.
func (s *Service) Check(ctx context.Context, branchID id.BranchID, deviceID string) error {
	record, err := s.store.Get(ctx, Key(branchID, deviceID))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pin lockout")
	}
	if record != nil && record.IsLockedAt(requestcontext.Now(ctx)) {
		return dErrors.New(dErrors.CodePinLocked, "too many incorrect pins, try again later")
	}
	return nil
}

// RecordFailure counts a failed PIN and locks the key once the threshold is
// reached. It reports whether this failure triggered the lock.
func (s *Service) RecordFailure(ctx context.Context, branchID id.BranchID, deviceID string) (bool, error) {
	key := Key(branchID, deviceID)
	now := requestcontext.Now(ctx)
	record, err := s.store.RecordFailure(ctx, key, now, s.config.Window)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record pin failure")
	}
	if !record.ShouldLock(s.config.Threshold) || record.IsLockedAt(now) {
		return false, nil
	}
	record.ApplyLock(s.config.Duration, now)
	if err := s.store.Lock(ctx, key, *record.LockedUntil); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock pin entry")
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "pin entry locked",
			"branch_id", branchID.String(),
			"device_id", deviceID,
			"failures", record.FailureCount,
			"locked_until", record.LockedUntil,
		)
	}
	return true, nil
}

func (s *Service) Clear(ctx context.Context, branchID id.BranchID, deviceID string) error {
	if err := s.store.Clear(ctx, Key(branchID, deviceID)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear pin failures")
	}
	return nil
}
