package handler

import (
	"strings"

	"kiosk/internal/biometric"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/geo"
)

const (
	maxFrames          = 20
	maxFacesPerFrame   = 5
	maxDescriptorWidth = 512
	maxNameLength      = 100
)

// AuthorizeRequest is the body of POST /kiosk/authorize. Every field is optional.
type AuthorizeRequest struct {
	BranchID string     `json:"branch_id"`
	Location *geo.Point `json:"location"`
	PinToken string     `json:"pin_token"`

	branchHint *id.BranchID
}

func (r *AuthorizeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	hint, err := optionalBranch(r.BranchID)
	if err != nil {
		return err
	}
	r.branchHint = hint
	if r.Location != nil {
		if err := r.Location.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "location is invalid")
		}
	}
	r.PinToken = strings.TrimSpace(r.PinToken)
	return nil
}

func (r *AuthorizeRequest) BranchHint() *id.BranchID { return r.branchHint }

// PinRequest is the body of POST /kiosk/pin.
type PinRequest struct {
	BranchID string `json:"branch_id"`
	Pin      string `json:"pin"`

	branchID id.BranchID
}

func (r *PinRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	branchID, err := requiredBranch(r.BranchID)
	if err != nil {
		return err
	}
	r.branchID = branchID
	r.Pin = strings.TrimSpace(r.Pin)
	if r.Pin == "" {
		return dErrors.New(dErrors.CodeValidation, "pin is required")
	}
	if len(r.Pin) > 32 {
		return dErrors.New(dErrors.CodeValidation, "pin must be at most 32 characters")
	}
	return nil
}

func (r *PinRequest) ParsedBranchID() id.BranchID { return r.branchID }

// OTPRequest is the body of POST /kiosk/otp. Name defaults to the label
// derived from the User-Agent.
type OTPRequest struct {
	BranchID string     `json:"branch_id"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Location *geo.Point `json:"location"`

	branchID id.BranchID
}

func (r *OTPRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	branchID, err := requiredBranch(r.BranchID)
	if err != nil {
		return err
	}
	r.branchID = branchID
	r.Name = strings.TrimSpace(r.Name)
	r.Type = strings.TrimSpace(r.Type)
	if len(r.Name) > maxNameLength || len(r.Type) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name and type must be at most 100 characters")
	}
	if r.Location != nil {
		if err := r.Location.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "location is invalid")
		}
	}
	return nil
}

func (r *OTPRequest) ParsedBranchID() id.BranchID { return r.branchID }

// OTPVerifyRequest is the body of POST /kiosk/otp/verify.
type OTPVerifyRequest struct {
	BranchID string `json:"branch_id"`
	Code     string `json:"code"`

	branchID id.BranchID
}

func (r *OTPVerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	branchID, err := requiredBranch(r.BranchID)
	if err != nil {
		return err
	}
	r.branchID = branchID
	r.Code = strings.TrimSpace(r.Code)
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	return nil
}

func (r *OTPVerifyRequest) ParsedBranchID() id.BranchID { return r.branchID }

// RegistrationRequest is the optional body of POST /kiosk/registration.
type RegistrationRequest struct {
	BranchID string `json:"branch_id"`

	branchID *id.BranchID
}

func (r *RegistrationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	branchID, err := optionalBranch(r.BranchID)
	if err != nil {
		return err
	}
	r.branchID = branchID
	return nil
}

func (r *RegistrationRequest) ParsedBranchID() *id.BranchID { return r.branchID }

// ClockRequest carries the face descriptors the kiosk extracted from its
// camera, one entry per sampled frame.
type ClockRequest struct {
	Frames []FrameInput `json:"frames"`
}

type FrameInput struct {
	Descriptors [][]float64 `json:"descriptors"`
}

func (r *ClockRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Frames) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one frame is required")
	}
	if len(r.Frames) > maxFrames {
		return dErrors.New(dErrors.CodeValidation, "at most 20 frames are accepted")
	}
	for _, f := range r.Frames {
		if len(f.Descriptors) > maxFacesPerFrame {
			return dErrors.New(dErrors.CodeValidation, "at most 5 faces per frame are accepted")
		}
		for _, d := range f.Descriptors {
			if len(d) == 0 || len(d) > maxDescriptorWidth {
				return dErrors.New(dErrors.CodeValidation, "descriptor length is invalid")
			}
		}
	}
	return nil
}

// Buffer turns the uploaded frames into a capture device for one clock action.
func (r *ClockRequest) Buffer() *biometric.FrameBuffer {
	frames := make([]biometric.Frame, 0, len(r.Frames))
	for _, f := range r.Frames {
		frame := biometric.Frame{Descriptors: make([]biometric.Embedding, 0, len(f.Descriptors))}
		for _, d := range f.Descriptors {
			frame.Descriptors = append(frame.Descriptors, biometric.Embedding(d))
		}
		frames = append(frames, frame)
	}
	return biometric.NewFrameBuffer(frames)
}

func optionalBranch(raw string) (*id.BranchID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	branchID, err := id.ParseBranchID(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "branch_id is invalid")
	}
	return &branchID, nil
}

func requiredBranch(raw string) (id.BranchID, error) {
	branchID, err := optionalBranch(raw)
	if err != nil {
		return id.BranchID{}, err
	}
	if branchID == nil {
		return id.BranchID{}, dErrors.New(dErrors.CodeValidation, "branch_id is required")
	}
	return *branchID, nil
}
