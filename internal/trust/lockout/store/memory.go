package store

import (
	"context"
	"sync"
	"time"

	"kiosk/internal/trust/lockout"
)

// InMemory keeps lockout records in process memory.
type InMemory struct {
	mu      sync.Mutex
	records map[string]*lockout.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*lockout.Record)}
}

func (s *InMemory) Get(_ context.Context, key string) (*lockout.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *InMemory) RecordFailure(_ context.Context, key string, now time.Time, window time.Duration) (*lockout.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		r = &lockout.Record{Identifier: key}
		s.records[key] = r
	}
	if r.FailureCount > 0 && now.Sub(r.LastFailureAt) > window {
		r.FailureCount = 0
	}
	r.FailureCount++
	r.LastFailureAt = now
	cp := *r
	return &cp, nil
}

// Lock sets the lock and restarts the failure count.
func (s *InMemory) Lock(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		r = &lockout.Record{Identifier: key}
		s.records[key] = r
	}
	r.LockedUntil = &until
	r.FailureCount = 0
	return nil
}

func (s *InMemory) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
