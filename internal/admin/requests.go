package admin

import (
	"strings"

	branchservice "kiosk/internal/branch/service"
	deviceservice "kiosk/internal/device/service"
	staffservice "kiosk/internal/staff/service"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/geo"
)

const maxFieldLength = 200

// PolicyRequest is the security policy section of branch requests.
type PolicyRequest struct {
	DeviceVerification bool    `json:"device_verification"`
	GeoVerification    bool    `json:"geo_verification"`
	GeoRadiusMeters    float64 `json:"geo_radius_meters"`
	PinRequired        bool    `json:"pin_required"`
	Pin                string  `json:"pin"`
	PinCacheSeconds    int     `json:"pin_cache_seconds"`
	ActivityLogging    bool    `json:"activity_logging"`
}

func (p PolicyRequest) input() branchservice.PolicyInput {
	return branchservice.PolicyInput{
		DeviceVerification: p.DeviceVerification,
		GeoVerification:    p.GeoVerification,
		GeoRadiusMeters:    p.GeoRadiusMeters,
		PinRequired:        p.PinRequired,
		Pin:                strings.TrimSpace(p.Pin),
		PinCacheSeconds:    p.PinCacheSeconds,
		ActivityLogging:    p.ActivityLogging,
	}
}

func (p PolicyRequest) validate() error {
	if p.GeoRadiusMeters < 0 {
		return dErrors.New(dErrors.CodeValidation, "geo_radius_meters cannot be negative")
	}
	if p.PinCacheSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "pin_cache_seconds cannot be negative")
	}
	return nil
}

// CreateBranchRequest is the body of POST /admin/branches.
type CreateBranchRequest struct {
	Name            string        `json:"name"`
	Location        *geo.Point    `json:"location"`
	Policy          PolicyRequest `json:"policy"`
	AdminRecipients []string      `json:"admin_recipients"`
}

func (r *CreateBranchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	if r.Location != nil {
		if err := r.Location.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "location is invalid")
		}
	}
	return r.Policy.validate()
}

func (r *CreateBranchRequest) Command() branchservice.CreateCommand {
	return branchservice.CreateCommand{
		Name:            r.Name,
		Location:        r.Location,
		Policy:          r.Policy.input(),
		AdminRecipients: r.AdminRecipients,
	}
}

// UpdatePolicyRequest is the body of PUT /admin/branches/{id}/policy.
type UpdatePolicyRequest struct {
	PolicyRequest
}

func (r *UpdatePolicyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return r.validate()
}

// RegisterDeviceRequest is the body of POST /admin/branches/{id}/devices.
// Either device_id or otp_request_id is required.
type RegisterDeviceRequest struct {
	DeviceID     string `json:"device_id"`
	Fingerprint  string `json:"fingerprint"`
	Label        string `json:"label"`
	OTPRequestID string `json:"otp_request_id"`

	otpRequestID *id.OTPRequestID
}

func (r *RegisterDeviceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.DeviceID = strings.TrimSpace(r.DeviceID)
	r.Label = strings.TrimSpace(r.Label)
	r.OTPRequestID = strings.TrimSpace(r.OTPRequestID)
	if len(r.DeviceID) > 128 || len(r.Label) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "device_id or label is too long")
	}
	if r.OTPRequestID != "" {
		requestID, err := id.ParseOTPRequestID(r.OTPRequestID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "otp_request_id is invalid")
		}
		r.otpRequestID = &requestID
	}
	if r.DeviceID == "" && r.otpRequestID == nil {
		return dErrors.New(dErrors.CodeValidation, "device_id or otp_request_id is required")
	}
	return nil
}

func (r *RegisterDeviceRequest) Command(branchID id.BranchID) deviceservice.RegisterCommand {
	return deviceservice.RegisterCommand{
		BranchID:     branchID,
		DeviceID:     r.DeviceID,
		Fingerprint:  strings.TrimSpace(r.Fingerprint),
		Label:        r.Label,
		OTPRequestID: r.otpRequestID,
	}
}

// CreateStaffRequest is the body of POST /admin/staff. A staff member without
// a branch may clock in at any branch.
type CreateStaffRequest struct {
	Name           string `json:"name"`
	EmployeeNumber string `json:"employee_number"`
	Role           string `json:"role"`
	BranchID       string `json:"branch_id"`

	branchID *id.BranchID
}

func (r *CreateStaffRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	r.EmployeeNumber = strings.TrimSpace(r.EmployeeNumber)
	r.Role = strings.TrimSpace(r.Role)
	if r.Name == "" || r.EmployeeNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "name and employee_number are required")
	}
	if len(r.Name) > maxFieldLength || len(r.EmployeeNumber) > maxFieldLength || len(r.Role) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "field is too long")
	}
	if raw := strings.TrimSpace(r.BranchID); raw != "" {
		branchID, err := id.ParseBranchID(raw)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "branch_id is invalid")
		}
		r.branchID = &branchID
	}
	return nil
}

func (r *CreateStaffRequest) Command() staffservice.CreateCommand {
	return staffservice.CreateCommand{
		Name:           r.Name,
		EmployeeNumber: r.EmployeeNumber,
		Role:           r.Role,
		BranchID:       r.branchID,
	}
}

// EnrollRequest is the body of POST /admin/staff/{id}/embeddings.
type EnrollRequest struct {
	Descriptor []float64 `json:"descriptor"`
}

func (r *EnrollRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Descriptor) == 0 {
		return dErrors.New(dErrors.CodeValidation, "descriptor is required")
	}
	return nil
}
