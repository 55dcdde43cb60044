package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/geo"
)

// DefaultPinCacheDuration applies when a branch requires a PIN but sets no cache duration.
const DefaultPinCacheDuration = time.Hour

// SecurityPolicy is the per-branch set of checks a kiosk must pass.
type SecurityPolicy struct {
	DeviceVerification bool          `json:"device_verification"`
	GeoVerification    bool          `json:"geo_verification"`
	GeoRadiusMeters    float64       `json:"geo_radius_meters"`
	PinRequired        bool          `json:"pin_required"`
	PinHash            string        `json:"-"`
	PinCacheDuration   time.Duration `json:"pin_cache_duration"`
	ActivityLogging    bool          `json:"activity_logging"`
}

// Branch is a physical location with its own security policy. The trust gate
// only reads branches.
//
// Invariants:
//   - Name is non-empty
//   - GeoVerification requires Location and a positive radius
//   - PinRequired requires a PinHash
type Branch struct {
	ID              id.BranchID    `json:"id"`
	Name            string         `json:"name"`
	Active          bool           `json:"active"`
	Location        *geo.Point     `json:"location,omitempty"`
	Policy          SecurityPolicy `json:"policy"`
	AdminRecipients []string       `json:"admin_recipients,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// NewBranch validates and constructs an active branch.
func NewBranch(branchID id.BranchID, name string, location *geo.Point, policy SecurityPolicy, recipients []string, now time.Time) (*Branch, error) {
	b := &Branch{
		ID:              branchID,
		Name:            strings.TrimSpace(name),
		Active:          true,
		Location:        location,
		Policy:          policy,
		AdminRecipients: recipients,
		CreatedAt:       now,
	}
	if b.Policy.PinRequired && b.Policy.PinCacheDuration <= 0 {
		b.Policy.PinCacheDuration = DefaultPinCacheDuration
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks the branch invariants.
func (b *Branch) Validate() error {
	if b.Name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "branch name cannot be empty")
	}
	if b.Policy.GeoVerification {
		if b.Location == nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "geo verification requires branch coordinates")
		}
		if b.Policy.GeoRadiusMeters <= 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "geo verification requires a positive radius")
		}
	}
	if b.Location != nil {
		if err := b.Location.Validate(); err != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "branch coordinates out of range")
		}
	}
	if b.Policy.PinRequired && b.Policy.PinHash == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "pin requirement needs a pin")
	}
	return nil
}

// CheckPin compares pin against the stored bcrypt hash.
func (p SecurityPolicy) CheckPin(pin string) bool {
	if p.PinHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.PinHash), []byte(pin)) == nil
}

// HashPin validates a numeric PIN and returns its bcrypt hash.
func HashPin(pin string) (string, error) {
	if len(pin) < 4 || len(pin) > 8 {
		return "", dErrors.New(dErrors.CodeValidation, "pin must be 4 to 8 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return "", dErrors.New(dErrors.CodeValidation, "pin must be numeric")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash pin")
	}
	return string(hash), nil
}
