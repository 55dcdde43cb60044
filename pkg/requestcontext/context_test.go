package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessors(t *testing.T) {
	t.Run("unset values fall back to zero values", func(t *testing.T) {
		ctx := context.Background()
		assert.Empty(t, DeviceID(ctx))
		assert.Empty(t, DeviceFingerprint(ctx))
		assert.Empty(t, RequestID(ctx))
		assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	})

	t.Run("injected values are returned", func(t *testing.T) {
		fixed := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
		ctx := WithTime(context.Background(), fixed)
		ctx = WithDevice(ctx, "kiosk-1", "fp")
		ctx = WithClientMetadata(ctx, "10.0.0.7", "Mozilla/5.0")
		ctx = WithRequestID(ctx, "req-1")

		assert.Equal(t, fixed, Now(ctx))
		assert.Equal(t, "kiosk-1", DeviceID(ctx))
		assert.Equal(t, "fp", DeviceFingerprint(ctx))
		assert.Equal(t, "10.0.0.7", ClientIP(ctx))
		assert.Equal(t, "Mozilla/5.0", UserAgent(ctx))
		assert.Equal(t, "req-1", RequestID(ctx))
	})
}
