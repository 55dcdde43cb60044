package admin

import (
	"time"

	devicemodels "kiosk/internal/device/models"
	staffmodels "kiosk/internal/staff/models"
	id "kiosk/pkg/domain"
)

type StaffResponse struct {
	ID             id.StaffID   `json:"id"`
	Name           string       `json:"name"`
	EmployeeNumber string       `json:"employee_number"`
	Role           string       `json:"role,omitempty"`
	BranchID       *id.BranchID `json:"branch_id,omitempty"`
	Active         bool         `json:"active"`
	CreatedAt      time.Time    `json:"created_at"`
}

func FromStaff(s *staffmodels.Staff) StaffResponse {
	return StaffResponse{
		ID:             s.ID,
		Name:           s.Name,
		EmployeeNumber: s.EmployeeNumber,
		Role:           s.Role,
		BranchID:       s.BranchID,
		Active:         s.Active,
		CreatedAt:      s.CreatedAt,
	}
}

// DevicesListResponse wraps a branch's kiosks.
type DevicesListResponse struct {
	Devices []*devicemodels.KioskDevice `json:"devices"`
	Total   int                         `json:"total"`
}
