package models

import (
	"strings"
	"time"

	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
)

// KioskDevice is a registered kiosk. At most one active device exists per
// (branch, stable identifier); devices are deactivated, never deleted.
type KioskDevice struct {
	ID          id.KioskID  `json:"id"`
	BranchID    id.BranchID `json:"branch_id"`
	DeviceID    string      `json:"device_id"`
	Fingerprint string      `json:"fingerprint,omitempty"`
	Label       string      `json:"label"`
	Active      bool        `json:"active"`
	LastUsedAt  *time.Time  `json:"last_used_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func NewKioskDevice(kioskID id.KioskID, branchID id.BranchID, deviceID, fingerprint, label string, now time.Time) (*KioskDevice, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "device identifier cannot be empty")
	}
	if branchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "device must belong to a branch")
	}
	if strings.TrimSpace(label) == "" {
		label = "Kiosk " + shortID(deviceID)
	}
	return &KioskDevice{
		ID:          kioskID,
		BranchID:    branchID,
		DeviceID:    deviceID,
		Fingerprint: fingerprint,
		Label:       strings.TrimSpace(label),
		Active:      true,
		CreatedAt:   now,
	}, nil
}

func (d *KioskDevice) CanDeactivate() error {
	if !d.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "device is already inactive")
	}
	return nil
}

func (d *KioskDevice) ApplyDeactivation() {
	d.Active = false
}

func (d *KioskDevice) ApplyUse(now time.Time) {
	d.LastUsedAt = &now
}

func shortID(deviceID string) string {
	if len(deviceID) <= 8 {
		return deviceID
	}
	return deviceID[:8]
}
