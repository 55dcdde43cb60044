package terminal

import (
	"time"

	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
)

// State is the terminal's outer state, independent of how a kiosk renders it.
type State string

const (
	StateIdle                 State = "idle"
	StateCheckingTrust        State = "checking_trust"
	StateAwaitingRegistration State = "awaiting_registration"
	StateDetecting            State = "detecting"
	StateRecording            State = "recording"
	StateSuccess              State = "success"
	StateError                State = "error"
)

// Snapshot is what a kiosk polls to render its screen.
type Snapshot struct {
	State     State        `json:"state"`
	DeviceID  string       `json:"device_id"`
	BranchID  *id.BranchID `json:"branch_id,omitempty"`
	Trusted   bool         `json:"trusted"`
	Code      dErrors.Code `json:"code,omitempty"`
	Message   string       `json:"message,omitempty"`
	StaffName string       `json:"staff_name,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}
