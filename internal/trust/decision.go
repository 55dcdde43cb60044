package trust

import (
	branchmodels "kiosk/internal/branch/models"
	devicemodels "kiosk/internal/device/models"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/geo"
)

type Outcome string

const (
	OutcomeAuthorized        Outcome = "authorized"
	OutcomeNeedsPin          Outcome = "needs_pin"
	OutcomeNeedsRegistration Outcome = "needs_registration"
	OutcomeDenied            Outcome = "denied"
)

// AuthorizeRequest is what a kiosk presents at boot. Location is nil when the
// kiosk could not obtain a position.
type AuthorizeRequest struct {
	DeviceID    string
	Fingerprint string
	BranchHint  *id.BranchID
	Location    *geo.Point
	PinToken    string
}

// Decision is the gate's verdict. Branch is set for Authorized and NeedsPin,
// and for NeedsRegistration when a hint was supplied. Reason and Message are
// set for Denied.
type Decision struct {
	Outcome  Outcome
	Branch   *branchmodels.Branch
	Device   *devicemodels.KioskDevice
	DeviceID string
	Reason   dErrors.Code
	Message  string
}

// Err returns the coded error for Denied and NeedsPin decisions.
func (d Decision) Err() error {
	switch d.Outcome {
	case OutcomeDenied:
		return dErrors.New(d.Reason, d.Message)
	case OutcomeNeedsPin:
		return dErrors.New(dErrors.CodePinRequired, "pin required")
	default:
		return nil
	}
}

func denied(branch *branchmodels.Branch, deviceID string, reason dErrors.Code, message string) Decision {
	return Decision{
		Outcome:  OutcomeDenied,
		Branch:   branch,
		DeviceID: deviceID,
		Reason:   reason,
		Message:  message,
	}
}
