package models

import (
	"time"

	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/geo"
)

// DefaultWindow is how long an issued code stays verifiable.
const DefaultWindow = 10 * time.Minute

// CodeLength is the number of digits in an issued code.
const CodeLength = 6

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusExpired  Status = "expired"
	StatusFailed   Status = "failed"
)

// DeviceMetadata is what an unrecognized kiosk declares when asking for approval.
type DeviceMetadata struct {
	DeviceID    string     `json:"device_id"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Location    *geo.Point `json:"location,omitempty"`
}

// Request is a single-use registration code issued to a branch's administrators.
// Status moves pending -> verified | expired | failed and never back.
type Request struct {
	ID         id.OTPRequestID `json:"id"`
	Code       string          `json:"-"`
	BranchID   id.BranchID     `json:"branch_id"`
	Device     DeviceMetadata  `json:"device"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	VerifiedAt *time.Time      `json:"verified_at,omitempty"`
}

func NewRequest(requestID id.OTPRequestID, code string, branchID id.BranchID, device DeviceMetadata, now time.Time, window time.Duration) (*Request, error) {
	if len(code) != CodeLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "otp code must be six digits")
	}
	if branchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "otp request requires a branch")
	}
	if device.DeviceID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "otp request requires a device identifier")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Request{
		ID:        requestID,
		Code:      code,
		BranchID:  branchID,
		Device:    device,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(window),
	}, nil
}

// IsExpired reports whether the request is past its expiry at now.
func (r *Request) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// CanVerify checks the request is pending and unexpired.
func (r *Request) CanVerify(now time.Time) error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "otp request is not pending")
	}
	if r.IsExpired(now) {
		return dErrors.New(dErrors.CodeInvariantViolation, "otp request has expired")
	}
	return nil
}

func (r *Request) ApplyVerified(now time.Time) {
	r.Status = StatusVerified
	r.VerifiedAt = &now
}

func (r *Request) ApplyExpired() {
	r.Status = StatusExpired
}

// ApplyFailed closes a pending request whose kiosk stopped waiting.
func (r *Request) ApplyFailed() {
	r.Status = StatusFailed
}

// Notification is the context delivered alongside a code to branch administrators.
type Notification struct {
	BranchID   id.BranchID
	BranchName string
	DeviceName string
	DeviceType string
	Location   *geo.Point
	ExpiresAt  time.Time
}
