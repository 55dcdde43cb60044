// Package httputil holds the JSON encoding and error-envelope helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "kiosk/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies. Clock requests carry frame descriptors,
// so this is larger than a typical form post.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request DTOs that normalize and validate
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a status code and JSON envelope.
// Uncoded errors become 500 without leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, StatusFor(code), ErrorResponse{
		Error:            string(code),
		ErrorDescription: dErrors.MessageOf(err),
	})
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized, dErrors.CodePinRequired, dErrors.CodePinInvalid:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeDeviceUnauthorized,
		dErrors.CodeLocationOutOfRange, dErrors.CodeOTPInvalid:
		return http.StatusForbidden
	case dErrors.CodeNotFound, dErrors.CodeNoMatchFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeSessionAlreadyRecorded,
		dErrors.CodeStoreConflict, dErrors.CodeTerminalBusy:
		return http.StatusConflict
	case dErrors.CodeSessionUnavailable, dErrors.CodeNoFaceDetected,
		dErrors.CodeLocationUnavailable, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodePinLocked:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout, dErrors.CodeRegistrationTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeCameraPermissionDenied, dErrors.CodeCameraUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes a JSON body into T and runs its Validate method.
// On failure it writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to decode request body",
				"request_id", requestID,
				"error", err,
			)
		}
		if errors.Is(err, io.EOF) {
			WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is required"))
			return nil, false
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return nil, false
	}
	if err := PT(&req).Validate(); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
