package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kiosk/internal/branch/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
)

// InMemory is a thread-safe in-memory branch store.
type InMemory struct {
	mu       sync.RWMutex
	branches map[id.BranchID]*models.Branch
}

func NewInMemory() *InMemory {
	return &InMemory{branches: make(map[id.BranchID]*models.Branch)}
}

func (s *InMemory) Create(_ context.Context, branch *models.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[branch.ID]; ok {
		return fmt.Errorf("branch %s: %w", branch.ID, sentinel.ErrConflict)
	}
	cp := *branch
	s.branches[branch.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, branchID id.BranchID) (*models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[branchID]
	if !ok {
		return nil, fmt.Errorf("branch not found: %w", sentinel.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

// ListActive returns active branches oldest first.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		if !b.Active {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) UpdatePolicy(_ context.Context, branchID id.BranchID, policy models.SecurityPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[branchID]
	if !ok {
		return fmt.Errorf("branch not found: %w", sentinel.ErrNotFound)
	}
	b.Policy = policy
	return nil
}
