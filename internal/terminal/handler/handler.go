// Package handler exposes the kiosk terminal over HTTP. The kiosk identifies
// itself with the device middleware; every route acts on that kiosk's terminal.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kiosk/internal/device/fingerprint"
	otpmodels "kiosk/internal/otp/models"
	"kiosk/internal/terminal"
	"kiosk/internal/trust"
	"kiosk/internal/trust/pintoken"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/platform/httputil"
	"kiosk/pkg/requestcontext"
)

// Terminals hands out the terminal for a kiosk.
type Terminals interface {
	Terminal(deviceID string) *terminal.Terminal
}

type PinVerifier interface {
	VerifyPin(ctx context.Context, branchID id.BranchID, deviceID, pin string) (pintoken.Token, error)
}

type OTPService interface {
	Request(ctx context.Context, branchID id.BranchID, device otpmodels.DeviceMetadata) (*otpmodels.Request, error)
	Verify(ctx context.Context, code string, branchID id.BranchID) (*otpmodels.Request, error)
}

type Handler struct {
	terminals Terminals
	pins      PinVerifier
	otp       OTPService
	logger    *slog.Logger
}

func New(terminals Terminals, pins PinVerifier, otp OTPService, logger *slog.Logger) *Handler {
	return &Handler{
		terminals: terminals,
		pins:      pins,
		otp:       otp,
		logger:    logger,
	}
}

// Register mounts the kiosk endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/kiosk", func(r chi.Router) {
		r.Post("/authorize", h.HandleAuthorize)
		r.Post("/pin", h.HandleVerifyPin)
		r.Post("/otp", h.HandleRequestOTP)
		r.Post("/otp/verify", h.HandleVerifyOTP)
		r.Post("/registration", h.HandleAwaitRegistration)
		r.Get("/registration", h.HandleState)
		r.Delete("/registration", h.HandleCancelRegistration)
		r.Post("/clock", h.HandleClock)
		r.Get("/state", h.HandleState)
	})
}

// terminalFor resolves the calling kiosk's terminal. Only the stable
// identifier keys a terminal; a fingerprint alone is rejected.
func (h *Handler) terminalFor(w http.ResponseWriter, ctx context.Context) (*terminal.Terminal, bool) {
	deviceID, ok := h.requireDeviceID(w, ctx)
	if !ok {
		return nil, false
	}
	return h.terminals.Terminal(deviceID), true
}

func (h *Handler) requireDeviceID(w http.ResponseWriter, ctx context.Context) (string, bool) {
	deviceID := requestcontext.DeviceID(ctx)
	if deviceID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "device identifier is required"))
		return "", false
	}
	return deviceID, true
}

// HandleAuthorize handles POST /kiosk/authorize.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[AuthorizeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	t, ok := h.terminalFor(w, ctx)
	if !ok {
		return
	}

	decision, err := t.Authorize(ctx, trust.AuthorizeRequest{
		DeviceID:    requestcontext.DeviceID(ctx),
		Fingerprint: requestcontext.DeviceFingerprint(ctx),
		BranchHint:  req.BranchHint(),
		Location:    req.Location,
		PinToken:    req.PinToken,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "kiosk authorization failed",
			"request_id", requestID,
			"device_id", requestcontext.DeviceID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "kiosk authorization decided",
		"request_id", requestID,
		"device_id", requestcontext.DeviceID(ctx),
		"outcome", decision.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromDecision(decision, t.Snapshot()))
}

// HandleVerifyPin handles POST /kiosk/pin.
func (h *Handler) HandleVerifyPin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PinRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	deviceID, ok := h.requireDeviceID(w, ctx)
	if !ok {
		return
	}

	token, err := h.pins.VerifyPin(ctx, req.ParsedBranchID(), deviceID, req.Pin)
	if err != nil {
		h.logger.WarnContext(ctx, "pin verification failed",
			"request_id", requestID,
			"device_id", deviceID,
			"branch_id", req.ParsedBranchID().String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, token)
}

// HandleRequestOTP handles POST /kiosk/otp. The code goes to the branch
// administrators, never back to the kiosk.
func (h *Handler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OTPRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	deviceID, ok := h.requireDeviceID(w, ctx)
	if !ok {
		return
	}
	name := req.Name
	if name == "" {
		name = requestcontext.DeviceLabel(ctx)
	}
	deviceType := req.Type
	if deviceType == "" {
		deviceType = fingerprint.DeviceType(r.UserAgent())
	}

	issued, err := h.otp.Request(ctx, req.ParsedBranchID(), otpmodels.DeviceMetadata{
		DeviceID:    deviceID,
		Fingerprint: requestcontext.DeviceFingerprint(ctx),
		Name:        name,
		Type:        deviceType,
		Location:    req.Location,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "otp request failed",
			"request_id", requestID,
			"device_id", deviceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, OTPIssuedResponse{RequestID: issued.ID, ExpiresAt: issued.ExpiresAt})
}

// HandleVerifyOTP handles POST /kiosk/otp/verify.
func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OTPVerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	verified, err := h.otp.Verify(ctx, req.Code, req.ParsedBranchID())
	if err != nil {
		h.logger.WarnContext(ctx, "otp verification failed",
			"request_id", requestID,
			"branch_id", req.ParsedBranchID().String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVerified(verified))
}

// HandleAwaitRegistration handles POST /kiosk/registration. The body is optional.
func (h *Handler) HandleAwaitRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var branchID *id.BranchID
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[RegistrationRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		branchID = req.ParsedBranchID()
	}
	t, ok := h.terminalFor(w, ctx)
	if !ok {
		return
	}
	if err := t.AwaitRegistration(ctx, branchID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, t.Snapshot())
}

// HandleCancelRegistration handles DELETE /kiosk/registration.
func (h *Handler) HandleCancelRegistration(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminalFor(w, r.Context())
	if !ok {
		return
	}
	t.CancelRegistration()
	httputil.WriteJSON(w, http.StatusOK, t.Snapshot())
}

// HandleClock handles POST /kiosk/clock.
func (h *Handler) HandleClock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ClockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	t, ok := h.terminalFor(w, ctx)
	if !ok {
		return
	}

	result := t.ClockAction(ctx, req.Buffer())
	if err := result.Err(); err != nil {
		h.logger.InfoContext(ctx, "clock action failed",
			"request_id", requestID,
			"device_id", requestcontext.DeviceID(ctx),
			"code", result.Code,
			"attempts", result.Attempts,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "clock action completed",
		"request_id", requestID,
		"device_id", requestcontext.DeviceID(ctx),
		"transition", result.Transition.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromClockResult(result))
}

// HandleState handles GET /kiosk/state and GET /kiosk/registration.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminalFor(w, r.Context())
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t.Snapshot())
}
