// Package domain holds the typed identifiers shared across kiosk modules.
//
// Typed IDs keep a branch ID from being passed where a staff ID is expected.
// Parsing happens once at the trust boundary (HTTP decoding, store scans);
// everything past that point works with the typed value.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "kiosk/pkg/domain-errors"
)

type (
	BranchID     uuid.UUID
	KioskID      uuid.UUID
	StaffID      uuid.UUID
	OTPRequestID uuid.UUID
)

func (id BranchID) String() string     { return uuid.UUID(id).String() }
func (id KioskID) String() string      { return uuid.UUID(id).String() }
func (id StaffID) String() string      { return uuid.UUID(id).String() }
func (id OTPRequestID) String() string { return uuid.UUID(id).String() }

func (id BranchID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id KioskID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id StaffID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id OTPRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id BranchID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id KioskID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id StaffID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id OTPRequestID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *BranchID) UnmarshalText(b []byte) error { return unmarshalID(b, "branch", (*uuid.UUID)(id)) }
func (id *KioskID) UnmarshalText(b []byte) error  { return unmarshalID(b, "kiosk", (*uuid.UUID)(id)) }
func (id *StaffID) UnmarshalText(b []byte) error  { return unmarshalID(b, "staff", (*uuid.UUID)(id)) }
func (id *OTPRequestID) UnmarshalText(b []byte) error {
	return unmarshalID(b, "otp request", (*uuid.UUID)(id))
}

func ParseBranchID(s string) (BranchID, error) {
	u, err := parseID(s, "branch")
	return BranchID(u), err
}

func ParseKioskID(s string) (KioskID, error) {
	u, err := parseID(s, "kiosk")
	return KioskID(u), err
}

func ParseStaffID(s string) (StaffID, error) {
	u, err := parseID(s, "staff")
	return StaffID(u), err
}

func ParseOTPRequestID(s string) (OTPRequestID, error) {
	u, err := parseID(s, "otp request")
	return OTPRequestID(u), err
}

// parseID rejects empty, malformed and nil UUIDs with CodeInvalidInput.
func parseID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" ID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID cannot be nil")
	}
	return u, nil
}

func unmarshalID(b []byte, kind string, dst *uuid.UUID) error {
	u, err := parseID(string(b), kind)
	if err != nil {
		return err
	}
	*dst = u
	return nil
}
