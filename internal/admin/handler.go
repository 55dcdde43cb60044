// Package admin exposes branch, kiosk and staff administration behind the
// shared admin token.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	attendancemodels "kiosk/internal/attendance/models"
	"kiosk/internal/biometric"
	branchmodels "kiosk/internal/branch/models"
	branchservice "kiosk/internal/branch/service"
	devicemodels "kiosk/internal/device/models"
	deviceservice "kiosk/internal/device/service"
	staffmodels "kiosk/internal/staff/models"
	staffservice "kiosk/internal/staff/service"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/platform/httputil"
	adminmw "kiosk/pkg/platform/middleware/admin"
	"kiosk/pkg/requestcontext"
)

type BranchService interface {
	Create(ctx context.Context, cmd branchservice.CreateCommand) (*branchmodels.Branch, error)
	Get(ctx context.Context, branchID id.BranchID) (*branchmodels.Branch, error)
	UpdatePolicy(ctx context.Context, branchID id.BranchID, in branchservice.PolicyInput) (*branchmodels.Branch, error)
}

type DeviceService interface {
	Register(ctx context.Context, cmd deviceservice.RegisterCommand) (*devicemodels.KioskDevice, error)
	Deactivate(ctx context.Context, kioskID id.KioskID) (*devicemodels.KioskDevice, error)
	ListByBranch(ctx context.Context, branchID id.BranchID) ([]*devicemodels.KioskDevice, error)
}

type StaffService interface {
	Create(ctx context.Context, cmd staffservice.CreateCommand) (*staffmodels.Staff, error)
	Get(ctx context.Context, staffID id.StaffID) (*staffmodels.Staff, error)
	Enroll(ctx context.Context, staffID id.StaffID, e biometric.Embedding) error
}

// Attendance reads the record of the work day containing at.
type Attendance interface {
	Location() *time.Location
	Today(ctx context.Context, staffID id.StaffID, at time.Time) (*attendancemodels.Record, error)
}

type Handler struct {
	branches   BranchService
	devices    DeviceService
	staff      StaffService
	attendance Attendance
	adminToken string
	logger     *slog.Logger
}

func New(branches BranchService, devices DeviceService, staff StaffService, attendance Attendance, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		branches:   branches,
		devices:    devices,
		staff:      staff,
		attendance: attendance,
		adminToken: adminToken,
		logger:     logger,
	}
}

// Register mounts the admin endpoints, all guarded by the admin token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.adminToken, h.logger))

		r.Post("/branches", h.HandleCreateBranch)
		r.Get("/branches/{branchID}", h.HandleGetBranch)
		r.Put("/branches/{branchID}/policy", h.HandleUpdatePolicy)
		r.Get("/branches/{branchID}/devices", h.HandleListDevices)
		r.Post("/branches/{branchID}/devices", h.HandleRegisterDevice)
		r.Delete("/devices/{kioskID}", h.HandleDeactivateDevice)

		r.Post("/staff", h.HandleCreateStaff)
		r.Get("/staff/{staffID}", h.HandleGetStaff)
		r.Post("/staff/{staffID}/embeddings", h.HandleEnroll)
		r.Get("/staff/{staffID}/attendance", h.HandleAttendance)
	})
}

func (h *Handler) HandleCreateBranch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateBranchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	branch, err := h.branches.Create(ctx, req.Command())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create branch", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, branch)
}

func (h *Handler) HandleGetBranch(w http.ResponseWriter, r *http.Request) {
	branchID, ok := branchParam(w, r)
	if !ok {
		return
	}
	branch, err := h.branches.Get(r.Context(), branchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, branch)
}

func (h *Handler) HandleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	branchID, ok := branchParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdatePolicyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	branch, err := h.branches.UpdatePolicy(ctx, branchID, req.input())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update branch policy",
			"request_id", requestID,
			"branch_id", branchID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, branch)
}

func (h *Handler) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	branchID, ok := branchParam(w, r)
	if !ok {
		return
	}
	devices, err := h.devices.ListByBranch(r.Context(), branchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DevicesListResponse{Devices: devices, Total: len(devices)})
}

// HandleRegisterDevice approves a kiosk, either directly or from the
// metadata of a verified registration request.
func (h *Handler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	branchID, ok := branchParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterDeviceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	device, err := h.devices.Register(ctx, req.Command(branchID))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to register kiosk",
			"request_id", requestID,
			"branch_id", branchID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "kiosk registered",
		"request_id", requestID,
		"branch_id", branchID.String(),
		"device_id", device.DeviceID,
	)
	httputil.WriteJSON(w, http.StatusCreated, device)
}

func (h *Handler) HandleDeactivateDevice(w http.ResponseWriter, r *http.Request) {
	kioskID, err := id.ParseKioskID(chi.URLParam(r, "kioskID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "kiosk id is invalid"))
		return
	}
	device, err := h.devices.Deactivate(r.Context(), kioskID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, device)
}

func (h *Handler) HandleCreateStaff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateStaffRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	st, err := h.staff.Create(ctx, req.Command())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromStaff(st))
}

func (h *Handler) HandleGetStaff(w http.ResponseWriter, r *http.Request) {
	staffID, ok := staffParam(w, r)
	if !ok {
		return
	}
	st, err := h.staff.Get(r.Context(), staffID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStaff(st))
}

func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	staffID, ok := staffParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.staff.Enroll(ctx, staffID, biometric.Embedding(req.Descriptor)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAttendance returns the record for ?date=YYYY-MM-DD, or today.
func (h *Handler) HandleAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	staffID, ok := staffParam(w, r)
	if !ok {
		return
	}
	at := requestcontext.Now(ctx)
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := time.ParseInLocation(time.DateOnly, raw, h.attendance.Location())
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "date must be YYYY-MM-DD"))
			return
		}
		at = day.Add(12 * time.Hour)
	}
	rec, err := h.attendance.Today(ctx, staffID, at)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func branchParam(w http.ResponseWriter, r *http.Request) (id.BranchID, bool) {
	branchID, err := id.ParseBranchID(chi.URLParam(r, "branchID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "branch id is invalid"))
		return id.BranchID{}, false
	}
	return branchID, true
}

func staffParam(w http.ResponseWriter, r *http.Request) (id.StaffID, bool) {
	staffID, err := id.ParseStaffID(chi.URLParam(r, "staffID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "staff id is invalid"))
		return id.StaffID{}, false
	}
	return staffID, true
}
