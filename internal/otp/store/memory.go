package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kiosk/internal/otp/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
)

// InMemory is a thread-safe in-memory OTP request store.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.OTPRequestID]*models.Request
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.OTPRequestID]*models.Request)}
}

func (s *InMemory) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("otp request %s: %w", req.ID, sentinel.ErrConflict)
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.OTPRequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("otp request not found: %w", sentinel.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

// FindPending returns the newest pending request for (branch, code).
func (s *InMemory) FindPending(_ context.Context, branchID id.BranchID, code string) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *models.Request
	for _, r := range s.requests {
		if r.Status != models.StatusPending || r.BranchID != branchID || r.Code != code {
			continue
		}
		if newest == nil || r.CreatedAt.After(newest.CreatedAt) {
			newest = r
		}
	}
	if newest == nil {
		return nil, fmt.Errorf("otp request not found: %w", sentinel.ErrNotFound)
	}
	cp := *newest
	return &cp, nil
}

// MarkVerified transitions a pending, unexpired request to verified.
// Any other state yields sentinel.ErrConflict.
func (s *InMemory) MarkVerified(_ context.Context, requestID id.OTPRequestID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("otp request not found: %w", sentinel.ErrNotFound)
	}
	if err := r.CanVerify(now); err != nil {
		return fmt.Errorf("otp request %s: %w", requestID, sentinel.ErrConflict)
	}
	r.ApplyVerified(now)
	return nil
}

// FailPending marks every pending request for (branch, device) failed and
// returns how many changed.
func (s *InMemory) FailPending(_ context.Context, branchID id.BranchID, deviceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Status == models.StatusPending && r.BranchID == branchID && r.Device.DeviceID == deviceID {
			r.ApplyFailed()
			n++
		}
	}
	return n, nil
}

// MarkExpired transitions a pending request to expired.
func (s *InMemory) MarkExpired(_ context.Context, requestID id.OTPRequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("otp request not found: %w", sentinel.ErrNotFound)
	}
	if r.Status != models.StatusPending {
		return fmt.Errorf("otp request %s: %w", requestID, sentinel.ErrConflict)
	}
	r.ApplyExpired()
	return nil
}
