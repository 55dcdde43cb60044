package audit

import (
	"context"
	"log/slog"

	"kiosk/pkg/requestcontext"
)

// LogAudit writes the entry to the structured log and hands it to the emitter.
// Emission failures are logged and swallowed; activity logging never changes
// the outcome of the operation being recorded.
func LogAudit(ctx context.Context, logger *slog.Logger, emitter Emitter, entry Entry, attrList ...any) {
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	if entry.IP == "" {
		entry.IP = requestcontext.ClientIP(ctx)
	}
	if entry.Reason == "" {
		entry.Reason = stringAttr(attrList, "reason")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}

	if logger != nil {
		args := append(attrList,
			"event", string(entry.Action),
			"status", string(entry.Status),
			"log_type", "audit",
		)
		if entry.RequestID != "" {
			args = append(args, "request_id", entry.RequestID)
		}
		if !entry.BranchID.IsNil() {
			args = append(args, "branch_id", entry.BranchID.String())
		}
		if entry.DeviceID != "" && stringAttr(attrList, "device_id") == "" {
			args = append(args, "device_id", entry.DeviceID)
		}
		if entry.Reason != "" && stringAttr(attrList, "reason") == "" {
			args = append(args, "reason", entry.Reason)
		}
		logger.InfoContext(ctx, string(entry.Action), args...)
	}

	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, entry); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit activity log entry",
			"event", string(entry.Action),
			"error", err,
		)
	}
}

// stringAttr returns the string value paired with key in a slog-style
// key/value list.
func stringAttr(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			v, _ := kv[i+1].(string)
			return v
		}
	}
	return ""
}
