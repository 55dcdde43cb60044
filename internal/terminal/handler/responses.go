package handler

import (
	"time"

	attendancemodels "kiosk/internal/attendance/models"
	otpmodels "kiosk/internal/otp/models"
	"kiosk/internal/terminal"
	"kiosk/internal/trust"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
)

type BranchSummary struct {
	ID   id.BranchID `json:"id"`
	Name string      `json:"name"`
}

// AuthorizeResponse reports the gate's decision. Denied and NeedsPin carry
// the code and message the kiosk should display.
type AuthorizeResponse struct {
	Outcome trust.Outcome     `json:"outcome"`
	Branch  *BranchSummary    `json:"branch,omitempty"`
	Code    dErrors.Code      `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	State   terminal.Snapshot `json:"state"`
}

func FromDecision(d trust.Decision, snap terminal.Snapshot) AuthorizeResponse {
	resp := AuthorizeResponse{Outcome: d.Outcome, State: snap}
	if d.Branch != nil {
		resp.Branch = &BranchSummary{ID: d.Branch.ID, Name: d.Branch.Name}
	}
	if err := d.Err(); err != nil {
		resp.Code = dErrors.CodeOf(err)
		resp.Message = dErrors.MessageOf(err)
	}
	return resp
}

type OTPIssuedResponse struct {
	RequestID id.OTPRequestID `json:"request_id"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type OTPVerifiedResponse struct {
	RequestID id.OTPRequestID          `json:"request_id"`
	BranchID  id.BranchID              `json:"branch_id"`
	Device    otpmodels.DeviceMetadata `json:"device"`
	Status    otpmodels.Status         `json:"status"`
}

func FromVerified(r *otpmodels.Request) OTPVerifiedResponse {
	return OTPVerifiedResponse{
		RequestID: r.ID,
		BranchID:  r.BranchID,
		Device:    r.Device,
		Status:    r.Status,
	}
}

type ClockResponse struct {
	StaffID    id.StaffID               `json:"staff_id"`
	StaffName  string                   `json:"staff_name"`
	Transition string                   `json:"transition"`
	At         time.Time                `json:"at"`
	Message    string                   `json:"message"`
	Confidence float64                  `json:"confidence"`
	Attempts   int                      `json:"attempts"`
	Record     *attendancemodels.Record `json:"record,omitempty"`
}

func FromClockResult(r terminal.ClockResult) ClockResponse {
	return ClockResponse{
		StaffID:    r.StaffID,
		StaffName:  r.StaffName,
		Transition: r.Transition.String(),
		At:         r.At,
		Message:    r.Message,
		Confidence: r.Confidence,
		Attempts:   r.Attempts,
		Record:     r.Record,
	}
}
