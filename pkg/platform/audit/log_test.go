package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk/pkg/requestcontext"
)

type recordingEmitter struct {
	entries []Entry
	err     error
}

func (r *recordingEmitter) Emit(_ context.Context, e Entry) error {
	r.entries = append(r.entries, e)
	return r.err
}

func TestLogAudit(t *testing.T) {
	t.Run("enriches entry from request context", func(t *testing.T) {
		ctx := requestcontext.WithRequestID(context.Background(), "req-1")
		ctx = requestcontext.WithClientMetadata(ctx, "10.1.2.3", "kiosk")
		emitter := &recordingEmitter{}

		LogAudit(ctx, nil, emitter, Entry{Action: ActionDeviceBlocked, Status: StatusBlocked}, "reason", "unknown device")

		require.Len(t, emitter.entries, 1)
		got := emitter.entries[0]
		assert.Equal(t, "req-1", got.RequestID)
		assert.Equal(t, "10.1.2.3", got.IP)
		assert.Equal(t, "unknown device", got.Reason)
		assert.False(t, got.Timestamp.IsZero())
	})

	t.Run("emit failure is logged and swallowed", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		emitter := &recordingEmitter{err: errors.New("boom")}

		LogAudit(context.Background(), logger, emitter, Entry{Action: ActionTimeIn, Status: StatusSuccess})

		assert.Contains(t, buf.String(), "log_type=audit")
		assert.Contains(t, buf.String(), "failed to emit activity log entry")
	})

	t.Run("nil emitter only logs", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogAudit(context.Background(), nil, nil, Entry{Action: ActionTimeOut})
		})
	})
}

func TestActionCategory(t *testing.T) {
	assert.Equal(t, CategorySecurity, ActionPinFailed.Category())
	assert.Equal(t, CategoryOperations, ActionTimeIn.Category())
	assert.Equal(t, CategoryOperations, Action("something_new").Category())
}
