package models

import (
	"strings"
	"time"

	"kiosk/internal/biometric"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
)

// Staff is an employee that can clock in with their face. BranchID is nil for
// staff that may clock in at any branch.
type Staff struct {
	ID             id.StaffID
	Name           string
	EmployeeNumber string
	Role           string
	BranchID       *id.BranchID
	Active         bool
	CreatedAt      time.Time
}

func NewStaff(staffID id.StaffID, name, employeeNumber, role string, branchID *id.BranchID, now time.Time) (*Staff, error) {
	s := &Staff{
		ID:             staffID,
		Name:           strings.TrimSpace(name),
		EmployeeNumber: strings.TrimSpace(employeeNumber),
		Role:           strings.TrimSpace(role),
		BranchID:       branchID,
		Active:         true,
		CreatedAt:      now,
	}
	if s.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "staff name is required")
	}
	if s.EmployeeNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "employee number is required")
	}
	return s, nil
}

// WorksAt reports whether the staff member may clock in at branchID.
func (s *Staff) WorksAt(branchID id.BranchID) bool {
	return s.BranchID == nil || *s.BranchID == branchID
}

// ValidateEmbedding rejects descriptors that cannot be compared.
func ValidateEmbedding(e biometric.Embedding, dimensions int) error {
	if len(e) == 0 {
		return dErrors.New(dErrors.CodeValidation, "embedding is empty")
	}
	if dimensions > 0 && len(e) != dimensions {
		return dErrors.New(dErrors.CodeValidation, "embedding has the wrong number of dimensions")
	}
	return nil
}
