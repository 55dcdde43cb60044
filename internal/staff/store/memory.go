package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"kiosk/internal/biometric"
	"kiosk/internal/staff/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
)

// InMemory keeps staff and their enrolled embeddings in maps.
type InMemory struct {
	mu         sync.RWMutex
	staff      map[id.StaffID]*models.Staff
	embeddings map[id.StaffID][]biometric.Embedding
}

func NewInMemory() *InMemory {
	return &InMemory{
		staff:      make(map[id.StaffID]*models.Staff),
		embeddings: make(map[id.StaffID][]biometric.Embedding),
	}
}

func (s *InMemory) Create(_ context.Context, st *models.Staff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.staff[st.ID]; ok {
		return fmt.Errorf("staff %s: %w", st.ID, sentinel.ErrConflict)
	}
	for _, existing := range s.staff {
		if existing.EmployeeNumber == st.EmployeeNumber {
			return fmt.Errorf("employee number %s: %w", st.EmployeeNumber, sentinel.ErrConflict)
		}
	}
	cp := *st
	s.staff[st.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, staffID id.StaffID) (*models.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.staff[staffID]
	if !ok {
		return nil, fmt.Errorf("staff not found: %w", sentinel.ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

func (s *InMemory) AddEmbedding(_ context.Context, staffID id.StaffID, e biometric.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.staff[staffID]; !ok {
		return fmt.Errorf("staff not found: %w", sentinel.ErrNotFound)
	}
	s.embeddings[staffID] = append(s.embeddings[staffID], slices.Clone(e))
	return nil
}

// Gallery returns the templates of active staff allowed at branchID, ordered
// by staff ID so matching is deterministic.
func (s *InMemory) Gallery(_ context.Context, branchID id.BranchID) (biometric.Gallery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]id.StaffID, 0, len(s.staff))
	for staffID, st := range s.staff {
		if st.Active && st.WorksAt(branchID) {
			ids = append(ids, staffID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var gallery biometric.Gallery
	for _, staffID := range ids {
		for _, e := range s.embeddings[staffID] {
			gallery = append(gallery, biometric.Template{StaffID: staffID, Embedding: slices.Clone(e)})
		}
	}
	return gallery, nil
}
