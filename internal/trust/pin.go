package trust

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	branchmodels "kiosk/internal/branch/models"
	"kiosk/internal/trust/pintoken"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/platform/audit"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/requestcontext"
)

// VerifyPin checks pin against the branch PIN and, on success, issues a token
// valid for the branch's PIN cache duration.
func (g *Gate) VerifyPin(ctx context.Context, branchID id.BranchID, deviceID, pin string) (pintoken.Token, error) {
	ctx, span := tracer.Start(ctx, "trust.VerifyPin", trace.WithAttributes(
		attribute.String("branch_id", branchID.String()),
		attribute.String("device_id", deviceID),
	))
	defer span.End()

	branch, err := g.branches.FindByID(ctx, branchID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return pintoken.Token{}, dErrors.New(dErrors.CodeNotFound, "branch not found")
		}
		return pintoken.Token{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load branch")
	}
	if !branch.Active {
		return pintoken.Token{}, dErrors.New(dErrors.CodeNotFound, "branch not found")
	}
	if !branch.Policy.PinRequired {
		return pintoken.Token{}, dErrors.New(dErrors.CodeBadRequest, "branch does not require a pin")
	}

	if g.lockout != nil {
		if err := g.lockout.Check(ctx, branchID, deviceID); err != nil {
			if dErrors.HasCode(err, dErrors.CodePinLocked) {
				g.metrics.IncPinVerification("locked")
				g.logAudit(ctx, branch, deviceID, audit.ActionPinFailed, audit.StatusBlocked, "reason", "pin entry locked")
			}
			return pintoken.Token{}, err
		}
	}

	if !branch.Policy.CheckPin(pin) {
		return pintoken.Token{}, g.pinFailed(ctx, branch, deviceID)
	}

	if g.lockout != nil {
		if err := g.lockout.Clear(ctx, branchID, deviceID); err != nil && g.logger != nil {
			g.logger.WarnContext(ctx, "failed to clear pin failures", "error", err)
		}
	}
	ttl := branch.Policy.PinCacheDuration
	if ttl <= 0 {
		ttl = branchmodels.DefaultPinCacheDuration
	}
	token, err := g.tokens.Issue(branchID, deviceID, requestcontext.Now(ctx), ttl)
	if err != nil {
		return pintoken.Token{}, err
	}
	g.metrics.IncPinVerification("verified")
	g.logAudit(ctx, branch, deviceID, audit.ActionPinVerified, audit.StatusSuccess)
	return token, nil
}

func (g *Gate) pinFailed(ctx context.Context, branch *branchmodels.Branch, deviceID string) error {
	g.metrics.IncPinVerification("invalid")
	g.logAudit(ctx, branch, deviceID, audit.ActionPinFailed, audit.StatusFailure, "reason", "incorrect pin")
	if g.lockout == nil {
		return dErrors.New(dErrors.CodePinInvalid, "incorrect pin")
	}
	locked, err := g.lockout.RecordFailure(ctx, branch.ID, deviceID)
	if err != nil && g.logger != nil {
		g.logger.WarnContext(ctx, "failed to record pin failure", "error", err)
	}
	if locked {
		return dErrors.New(dErrors.CodePinLocked, "too many incorrect pins, try again later")
	}
	return dErrors.New(dErrors.CodePinInvalid, "incorrect pin")
}
