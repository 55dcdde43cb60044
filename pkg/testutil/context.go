package testutil

import (
	"context"
	"net/http"
	"time"

	"kiosk/pkg/requestcontext"
)

// WithDevice adds a kiosk identity to the request context, as the device
// middleware would.
func WithDevice(req *http.Request, deviceID, fingerprint string) *http.Request {
	return req.WithContext(requestcontext.WithDevice(req.Context(), deviceID, fingerprint))
}

// At pins the request-scoped clock.
func At(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// ContextAt returns a background context whose request clock reads now.
func ContextAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}
