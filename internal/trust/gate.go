// Package trust decides whether a kiosk may be used: the device must be
// registered at a branch, inside the branch geofence when required, and
// holding a valid PIN token when the branch requires a PIN.
package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	branchmodels "kiosk/internal/branch/models"
	"kiosk/internal/device/fingerprint"
	devicemodels "kiosk/internal/device/models"
	"kiosk/internal/platform/metrics"
	"kiosk/internal/trust/pintoken"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/geo"
	"kiosk/pkg/platform/audit"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/requestcontext"
)

var tracer = otel.Tracer("kiosk/trust")

type Branches interface {
	ListActive(ctx context.Context) ([]*branchmodels.Branch, error)
	FindByID(ctx context.Context, branchID id.BranchID) (*branchmodels.Branch, error)
}

type Devices interface {
	FindActive(ctx context.Context, branchID id.BranchID, deviceID string) (*devicemodels.KioskDevice, error)
	TouchLastUsed(ctx context.Context, kioskID id.KioskID, at time.Time) error
}

// PinLockout limits repeated PIN failures.
type PinLockout interface {
	Check(ctx context.Context, branchID id.BranchID, deviceID string) error
	RecordFailure(ctx context.Context, branchID id.BranchID, deviceID string) (bool, error)
	Clear(ctx context.Context, branchID id.BranchID, deviceID string) error
}

type Gate struct {
	branches              Branches
	devices               Devices
	tokens                *pintoken.Service
	lockout               PinLockout
	allowSelfRegistration bool
	logger                *slog.Logger
	auditor               audit.Emitter
	metrics               *metrics.Metrics
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithAuditEmitter(emitter audit.Emitter) Option {
	return func(g *Gate) {
		g.auditor = emitter
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func WithPinLockout(l PinLockout) Option {
	return func(g *Gate) {
		g.lockout = l
	}
}

// WithSelfRegistration controls whether an unrecognized kiosk may start
// the OTP flow or is denied outright.
func WithSelfRegistration(allowed bool) Option {
	return func(g *Gate) {
		g.allowSelfRegistration = allowed
	}
}

func New(branches Branches, devices Devices, tokens *pintoken.Service, opts ...Option) *Gate {
	g := &Gate{
		branches:              branches,
		devices:               devices,
		tokens:                tokens,
		allowSelfRegistration: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize runs device, location and PIN checks in that order. Only
// infrastructure failures are returned as errors; every policy outcome is a
// Decision.
func (g *Gate) Authorize(ctx context.Context, req AuthorizeRequest) (decision Decision, err error) {
	ctx, span := tracer.Start(ctx, "trust.Authorize", trace.WithAttributes(
		attribute.String("device_id", req.DeviceID),
	))
	defer func() {
		span.SetAttributes(attribute.String("outcome", string(decision.Outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	branch, device, err := g.resolveDevice(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	if branch == nil {
		return g.unrecognized(ctx, req)
	}
	g.logAudit(ctx, branch, req.DeviceID, audit.ActionDeviceVerified, audit.StatusSuccess, driftAttrs(device, req)...)

	if branch.Policy.GeoVerification {
		if d, ok := g.checkLocation(ctx, branch, req); !ok {
			return g.decide(d), nil
		}
	}

	if branch.Policy.PinRequired {
		now := requestcontext.Now(ctx)
		if verr := g.tokens.Validate(req.PinToken, branch.ID, req.DeviceID, now); verr != nil {
			return g.decide(Decision{
				Outcome:  OutcomeNeedsPin,
				Branch:   branch,
				Device:   device,
				DeviceID: req.DeviceID,
				Message:  dErrors.MessageOf(verr),
			}), nil
		}
	}

	if device != nil {
		if terr := g.devices.TouchLastUsed(ctx, device.ID, requestcontext.Now(ctx)); terr != nil && g.logger != nil {
			g.logger.WarnContext(ctx, "failed to update device last used",
				"kiosk_id", device.ID.String(),
				"error", terr,
			)
		}
	}
	return g.decide(Decision{
		Outcome:  OutcomeAuthorized,
		Branch:   branch,
		Device:   device,
		DeviceID: req.DeviceID,
	}), nil
}

// resolveDevice walks active branches, hinted branch first, and returns the
// first branch holding an active device with the stable identifier. A hinted
// branch with device verification disabled matches without a device. A
// request without the identifier never resolves; the fingerprint alone does
// not identify a kiosk.
func (g *Gate) resolveDevice(ctx context.Context, req AuthorizeRequest) (*branchmodels.Branch, *devicemodels.KioskDevice, error) {
	branches, err := g.branches.ListActive(ctx)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load branches")
	}
	ordered := orderByHint(branches, req.BranchHint)

	if len(ordered) > 0 && req.BranchHint != nil && ordered[0].ID == *req.BranchHint && !ordered[0].Policy.DeviceVerification {
		return ordered[0], nil, nil
	}

	if req.DeviceID == "" {
		return nil, nil, nil
	}
	for _, b := range ordered {
		d, err := g.devices.FindActive(ctx, b.ID, req.DeviceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up device")
		}
		return b, d, nil
	}
	return nil, nil, nil
}

func orderByHint(branches []*branchmodels.Branch, hint *id.BranchID) []*branchmodels.Branch {
	if hint == nil {
		return branches
	}
	i := slices.IndexFunc(branches, func(b *branchmodels.Branch) bool { return b.ID == *hint })
	if i <= 0 {
		return branches
	}
	ordered := make([]*branchmodels.Branch, 0, len(branches))
	ordered = append(ordered, branches[i])
	ordered = append(ordered, branches[:i]...)
	return append(ordered, branches[i+1:]...)
}

func (g *Gate) unrecognized(ctx context.Context, req AuthorizeRequest) (Decision, error) {
	var hinted *branchmodels.Branch
	if req.BranchHint != nil {
		b, err := g.branches.FindByID(ctx, *req.BranchHint)
		if err == nil && b.Active {
			hinted = b
		}
	}
	if !g.allowSelfRegistration {
		g.logAudit(ctx, hinted, req.DeviceID, audit.ActionDeviceBlocked, audit.StatusBlocked, "reason", "unauthorized device")
		return g.decide(denied(hinted, req.DeviceID, dErrors.CodeDeviceUnauthorized, "this device is not authorized")), nil
	}
	g.logAudit(ctx, hinted, req.DeviceID, audit.ActionDeviceBlocked, audit.StatusFailure, "reason", "unregistered device")
	return g.decide(Decision{
		Outcome:  OutcomeNeedsRegistration,
		Branch:   hinted,
		DeviceID: req.DeviceID,
	}), nil
}

func (g *Gate) checkLocation(ctx context.Context, branch *branchmodels.Branch, req AuthorizeRequest) (Decision, bool) {
	if req.Location == nil || req.Location.Validate() != nil || branch.Location == nil {
		g.logAudit(ctx, branch, req.DeviceID, audit.ActionLocationFailed, audit.StatusFailure, "reason", "location unavailable")
		return denied(branch, req.DeviceID, dErrors.CodeLocationUnavailable, "location is required at this branch"), false
	}
	distance := geo.Distance(*branch.Location, *req.Location)
	if !geo.Within(*branch.Location, *req.Location, branch.Policy.GeoRadiusMeters) {
		g.logAudit(ctx, branch, req.DeviceID, audit.ActionLocationFailed, audit.StatusFailure,
			"reason", "out of range",
			"distance_m", fmt.Sprintf("%.1f", distance),
		)
		return denied(branch, req.DeviceID, dErrors.CodeLocationOutOfRange,
			fmt.Sprintf("device is %.0fm from the branch, outside the %.0fm radius", distance, branch.Policy.GeoRadiusMeters)), false
	}
	g.logAudit(ctx, branch, req.DeviceID, audit.ActionLocationVerified, audit.StatusSuccess,
		"distance_m", fmt.Sprintf("%.1f", distance))
	return Decision{}, true
}

// driftAttrs reports whether the presented fingerprint differs from the one
// recorded at registration. Drift is informational only.
func driftAttrs(device *devicemodels.KioskDevice, req AuthorizeRequest) []any {
	if device == nil || device.Fingerprint == "" || req.Fingerprint == "" {
		return nil
	}
	_, drift := fingerprint.CompareFingerprints(device.Fingerprint, req.Fingerprint)
	return []any{"fingerprint_drift", strconv.FormatBool(drift)}
}

func (g *Gate) decide(d Decision) Decision {
	g.metrics.IncTrustDecision(string(d.Outcome))
	return d
}

// logAudit emits unless the branch turned activity logging off. Decisions
// without a branch are always logged.
func (g *Gate) logAudit(ctx context.Context, branch *branchmodels.Branch, deviceID string, action audit.Action, status audit.Status, attrs ...any) {
	entry := audit.Entry{DeviceID: deviceID, Action: action, Status: status}
	if branch != nil {
		if !branch.Policy.ActivityLogging {
			return
		}
		entry.BranchID = branch.ID
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		k, _ := attrs[i].(string)
		v, ok := attrs[i+1].(string)
		if !ok || k == "" || k == "reason" {
			continue
		}
		if entry.Metadata == nil {
			entry.Metadata = map[string]string{}
		}
		entry.Metadata[k] = v
	}
	audit.LogAudit(ctx, g.logger, g.auditor, entry, attrs...)
}
