package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"kiosk/internal/device/fingerprint"
	"kiosk/internal/platform/metrics"
	"kiosk/pkg/platform/middleware/request"
	"kiosk/pkg/requestcontext"
)

type echoDevice struct{}

func (echoDevice) Register(r chi.Router) {
	r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.DeviceID(r.Context()) + "|" + requestcontext.DeviceLabel(r.Context())))
	})
}

type RouterSuite struct {
	suite.Suite
	registry *prometheus.Registry
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.registry = prometheus.NewRegistry()
}

func (s *RouterSuite) router(checks map[string]HealthCheck) http.Handler {
	return NewRouter(Config{
		Logger:       slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Metrics:      metrics.NewWithRegisterer(s.registry),
		Gatherer:     s.registry,
		Fingerprints: fingerprint.NewService(true),
		Checks:       checks,
	}, echoDevice{})
}

func (s *RouterSuite) get(h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestHealth() {
	s.Run("all checks pass", func() {
		rec := s.get(s.router(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		}), "/healthz", nil)
		s.Equal(http.StatusOK, rec.Code)

		var resp healthResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("ok", resp.Status)
		s.Equal("ok", resp.Checks["postgres"])
	})

	s.Run("a failing dependency degrades", func() {
		s.registry = prometheus.NewRegistry()
		rec := s.get(s.router(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
		}), "/healthz", nil)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.NotContains(rec.Body.String(), "refused")
	})
}

func (s *RouterSuite) TestMetricsEndpoint() {
	h := s.router(nil)
	s.get(h, "/healthz", nil)

	rec := s.get(h, "/metrics", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "kiosk_http_request_duration_seconds")
}

func (s *RouterSuite) TestSharedMiddleware() {
	rec := s.get(s.router(nil), "/echo", map[string]string{
		"X-Device-ID": "kiosk-1",
		"User-Agent":  "Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	})
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get(request.HeaderRequestID))
	s.Contains(rec.Body.String(), "kiosk-1|Chrome")
}
