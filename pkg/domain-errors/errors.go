// Package domainerrors carries coded domain errors across service boundaries.
//
// Services return these so transports can map a failure to a stable,
// client-facing code without inspecting error strings. Infrastructure facts
// (not found, conflict, expired) come from pkg/platform/sentinel and are
// translated into a Code by the service that observes them.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, client-facing error identifier.
type Code string

// Generic codes.
const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Kiosk codes. Each one maps to a distinct, user-facing failure state.
const (
	CodeDeviceUnauthorized     Code = "device_unauthorized"
	CodeLocationOutOfRange     Code = "location_out_of_range"
	CodeLocationUnavailable    Code = "location_unavailable"
	CodePinRequired            Code = "pin_required"
	CodePinInvalid             Code = "pin_invalid"
	CodePinLocked              Code = "pin_locked"
	CodeOTPInvalid             Code = "otp_invalid"
	CodeRegistrationTimeout    Code = "registration_timeout"
	CodeNoFaceDetected         Code = "no_face_detected"
	CodeNoMatchFound           Code = "no_match_found"
	CodeSessionUnavailable     Code = "session_unavailable"
	CodeSessionAlreadyRecorded Code = "session_already_recorded"
	CodeCameraPermissionDenied Code = "camera_permission_denied"
	CodeCameraUnavailable      Code = "camera_unavailable"
	CodeStoreConflict          Code = "store_conflict"
	CodeTerminalBusy           Code = "terminal_busy"
)

// Error is a coded domain error. Message is safe to show to the client;
// the wrapped error is not.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and client-safe message to an underlying error.
// Wrapping nil returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether the outermost domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost domain error in err's chain,
// or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of err.
// Uncoded errors never leak their text.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
