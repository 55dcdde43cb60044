package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kiosk/internal/device/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
)

// InMemory is a thread-safe in-memory device store.
type InMemory struct {
	mu      sync.RWMutex
	devices map[id.KioskID]*models.KioskDevice
}

func NewInMemory() *InMemory {
	return &InMemory{devices: make(map[id.KioskID]*models.KioskDevice)}
}

// Create enforces one active device per (branch, identifier).
func (s *InMemory) Create(_ context.Context, device *models.KioskDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[device.ID]; ok {
		return fmt.Errorf("device %s: %w", device.ID, sentinel.ErrConflict)
	}
	if device.Active {
		for _, d := range s.devices {
			if d.Active && d.BranchID == device.BranchID && d.DeviceID == device.DeviceID {
				return fmt.Errorf("active device already registered: %w", sentinel.ErrConflict)
			}
		}
	}
	cp := *device
	s.devices[device.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, kioskID id.KioskID) (*models.KioskDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[kioskID]
	if !ok {
		return nil, fmt.Errorf("device not found: %w", sentinel.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (s *InMemory) FindActive(_ context.Context, branchID id.BranchID, deviceID string) (*models.KioskDevice, error) {
	return s.findActive(func(d *models.KioskDevice) bool {
		return d.BranchID == branchID && d.DeviceID == deviceID
	})
}

func (s *InMemory) findActive(match func(*models.KioskDevice) bool) (*models.KioskDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.Active && match(d) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("device not found: %w", sentinel.ErrNotFound)
}

// ListByBranch returns all devices of a branch, newest first.
func (s *InMemory) ListByBranch(_ context.Context, branchID id.BranchID) ([]*models.KioskDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.KioskDevice
	for _, d := range s.devices {
		if d.BranchID == branchID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Execute runs validate then mutate under the store lock.
func (s *InMemory) Execute(_ context.Context, kioskID id.KioskID, validate func(*models.KioskDevice) error, mutate func(*models.KioskDevice)) (*models.KioskDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[kioskID]
	if !ok {
		return nil, fmt.Errorf("device not found: %w", sentinel.ErrNotFound)
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	mutate(d)
	cp := *d
	return &cp, nil
}

func (s *InMemory) TouchLastUsed(_ context.Context, kioskID id.KioskID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[kioskID]
	if !ok {
		return fmt.Errorf("device not found: %w", sentinel.ErrNotFound)
	}
	d.ApplyUse(at)
	return nil
}
