// Package device attaches the kiosk's stable identifier and fingerprint to
// the request context.
package device

import (
	"net/http"
	"strings"

	"kiosk/pkg/requestcontext"
)

const (
	// HeaderDeviceID carries the identifier the kiosk persisted at first boot.
	HeaderDeviceID = "X-Device-ID"
	// CookieDeviceID is the fallback for browser kiosks that cannot set headers.
	CookieDeviceID = "kiosk_device_id"

	maxDeviceIDLength = 128
)

// Fingerprinter derives a best-effort fingerprint and label from a User-Agent.
type Fingerprinter interface {
	ComputeFingerprint(userAgent string) string
}

// LabelFunc turns a User-Agent into a human display name.
type LabelFunc func(userAgent string) string

// Middleware resolves device identity for every request. An absent or
// oversized identifier leaves the device ID empty; handlers decide whether
// that is acceptable.
func Middleware(fp Fingerprinter, label LabelFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua := r.Header.Get("User-Agent")
			fingerprint := ""
			if fp != nil {
				fingerprint = fp.ComputeFingerprint(ua)
			}
			ctx := requestcontext.WithDevice(r.Context(), DeviceIDFromRequest(r), fingerprint)
			if label != nil {
				ctx = requestcontext.WithDeviceLabel(ctx, label(ua))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceIDFromRequest prefers the header over the cookie.
func DeviceIDFromRequest(r *http.Request) string {
	deviceID := strings.TrimSpace(r.Header.Get(HeaderDeviceID))
	if deviceID == "" {
		if c, err := r.Cookie(CookieDeviceID); err == nil {
			deviceID = strings.TrimSpace(c.Value)
		}
	}
	if len(deviceID) > maxDeviceIDLength {
		return ""
	}
	return deviceID
}
