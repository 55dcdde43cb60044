package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kiosk/internal/attendance/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
)

type recordKey struct {
	staffID id.StaffID
	date    time.Time
}

// InMemory serializes writes per (staff, date) with a keyed mutex.
type InMemory struct {
	mu      sync.Mutex
	records map[recordKey]*models.Record
	locks   map[recordKey]*sync.Mutex
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[recordKey]*models.Record),
		locks:   make(map[recordKey]*sync.Mutex),
	}
}

func (s *InMemory) lock(key recordKey) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *InMemory) Find(_ context.Context, staffID id.StaffID, workDate time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordKey{staffID, workDate}]
	if !ok {
		return nil, fmt.Errorf("attendance record not found: %w", sentinel.ErrNotFound)
	}
	return clone(r), nil
}

// Save writes rec if t's field is still unset in the stored record and every
// earlier field is. Otherwise it returns ErrConflict and leaves the record
// unchanged.
func (s *InMemory) Save(_ context.Context, rec *models.Record, t models.Transition) error {
	key := recordKey{rec.StaffID, rec.WorkDate}
	unlock := s.lock(key)
	defer unlock()

	at := rec.Field(t)
	if at == nil {
		return fmt.Errorf("transition %s not set on record: %w", t, sentinel.ErrInvalidState)
	}

	s.mu.Lock()
	current, ok := s.records[key]
	s.mu.Unlock()
	if !ok {
		current = models.NewRecord(rec.StaffID, rec.WorkDate)
	}
	if err := current.CanApply(t, *at); err != nil {
		return fmt.Errorf("%s for %s: %w", t, rec.StaffID, sentinel.ErrConflict)
	}

	s.mu.Lock()
	s.records[key] = clone(rec)
	s.mu.Unlock()
	return nil
}

func clone(r *models.Record) *models.Record {
	cp := *r
	cp.MorningIn = clonePtr(r.MorningIn)
	cp.MorningOut = clonePtr(r.MorningOut)
	cp.AfternoonIn = clonePtr(r.AfternoonIn)
	cp.AfternoonOut = clonePtr(r.AfternoonOut)
	cp.TotalHours = clonePtr(r.TotalHours)
	cp.OvertimeHours = clonePtr(r.OvertimeHours)
	if r.BranchID != nil {
		b := *r.BranchID
		cp.BranchID = &b
	}
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
