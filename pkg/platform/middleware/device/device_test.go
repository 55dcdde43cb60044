package device

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"kiosk/pkg/requestcontext"
)

type stubFingerprinter struct{}

func (stubFingerprinter) ComputeFingerprint(ua string) string { return "fp:" + ua }

func TestDeviceIDFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{name: "header", header: "kiosk-1", want: "kiosk-1"},
		{name: "header wins over cookie", header: "kiosk-1", cookie: "kiosk-2", want: "kiosk-1"},
		{name: "cookie fallback", cookie: "kiosk-2", want: "kiosk-2"},
		{name: "trimmed", header: "  kiosk-3 ", want: "kiosk-3"},
		{name: "oversized", header: strings.Repeat("x", maxDeviceIDLength+1), want: ""},
		{name: "absent", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderDeviceID, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieDeviceID, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, DeviceIDFromRequest(req))
		})
	}
}

func TestMiddleware(t *testing.T) {
	var gotID, gotFP, gotLabel string
	h := Middleware(stubFingerprinter{}, func(ua string) string { return "label:" + ua })(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			gotID = requestcontext.DeviceID(r.Context())
			gotFP = requestcontext.DeviceFingerprint(r.Context())
			gotLabel = requestcontext.DeviceLabel(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderDeviceID, "kiosk-1")
	req.Header.Set("User-Agent", "tablet")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "kiosk-1", gotID)
	assert.Equal(t, "fp:tablet", gotFP)
	assert.Equal(t, "label:tablet", gotLabel)
}
