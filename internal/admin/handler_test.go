package admin

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	attendancemodels "kiosk/internal/attendance/models"
	attendanceservice "kiosk/internal/attendance/service"
	attendancestore "kiosk/internal/attendance/store"
	branchmodels "kiosk/internal/branch/models"
	branchservice "kiosk/internal/branch/service"
	branchstore "kiosk/internal/branch/store"
	devicemodels "kiosk/internal/device/models"
	deviceservice "kiosk/internal/device/service"
	devicestore "kiosk/internal/device/store"
	staffservice "kiosk/internal/staff/service"
	staffstore "kiosk/internal/staff/store"
	adminmw "kiosk/pkg/platform/middleware/admin"
	"kiosk/pkg/testutil"
)

const adminToken = "secret-token"

type AdminHandlerSuite struct {
	suite.Suite
	router *chi.Mux
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

func (s *AdminHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.router = chi.NewRouter()
	New(
		branchservice.New(branchstore.NewInMemory()),
		deviceservice.New(devicestore.NewInMemory()),
		staffservice.New(staffstore.NewInMemory(), staffservice.WithEmbeddingDimensions(2)),
		attendanceservice.New(attendancestore.NewInMemory()),
		adminToken,
		logger,
	).Register(s.router)
}

func (s *AdminHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set(adminmw.HeaderAdminToken, adminToken)
	return testutil.DoRequest(s.router, req)
}

func (s *AdminHandlerSuite) createBranch() *branchmodels.Branch {
	rec := s.do(http.MethodPost, "/admin/branches", map[string]any{
		"name":             "Main",
		"policy":           map[string]any{"device_verification": true, "pin_required": true, "pin": "4321"},
		"admin_recipients": []string{"ops@example.com"},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var b branchmodels.Branch
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &b))
	return &b
}

func (s *AdminHandlerSuite) TestAdminTokenRequired() {
	req := httptest.NewRequest(http.MethodPost, "/admin/branches", bytes.NewBufferString(`{"name":"Main"}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *AdminHandlerSuite) TestBranches() {
	s.Run("create and read back without the pin hash", func() {
		b := s.createBranch()
		rec := s.do(http.MethodGet, "/admin/branches/"+b.ID.String(), nil)
		s.Equal(http.StatusOK, rec.Code)
		s.NotContains(rec.Body.String(), "pin_hash")
		s.Contains(rec.Body.String(), `"pin_required":true`)
	})

	s.Run("name is required", func() {
		rec := s.do(http.MethodPost, "/admin/branches", map[string]any{"name": " "})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed id", func() {
		rec := s.do(http.MethodGet, "/admin/branches/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("policy update", func() {
		b := s.createBranch()
		rec := s.do(http.MethodPut, "/admin/branches/"+b.ID.String()+"/policy", map[string]any{
			"device_verification": true,
			"activity_logging":    true,
		})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		var updated branchmodels.Branch
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
		s.False(updated.Policy.PinRequired)
		s.True(updated.Policy.ActivityLogging)
	})
}

func (s *AdminHandlerSuite) TestDevices() {
	b := s.createBranch()
	path := "/admin/branches/" + b.ID.String() + "/devices"

	rec := s.do(http.MethodPost, path, map[string]any{"device_id": "kiosk-1", "label": "Lobby"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var device devicemodels.KioskDevice
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &device))
	s.True(device.Active)

	s.Run("duplicate active identifier conflicts", func() {
		rec := s.do(http.MethodPost, path, map[string]any{"device_id": "kiosk-1"})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("identifier or request id is required", func() {
		rec := s.do(http.MethodPost, path, map[string]any{"label": "Lobby"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("list", func() {
		rec := s.do(http.MethodGet, path, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var list DevicesListResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
		s.Equal(1, list.Total)
	})

	s.Run("deactivate", func() {
		rec := s.do(http.MethodDelete, "/admin/devices/"+device.ID.String(), nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var deactivated devicemodels.KioskDevice
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &deactivated))
		s.False(deactivated.Active)
	})
}

func (s *AdminHandlerSuite) TestStaff() {
	rec := s.do(http.MethodPost, "/admin/staff", map[string]any{"name": "Ana Cruz", "employee_number": "E-1"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var st StaffResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &st))
	s.Nil(st.BranchID)

	s.Run("duplicate employee number conflicts", func() {
		rec := s.do(http.MethodPost, "/admin/staff", map[string]any{"name": "Other", "employee_number": "E-1"})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("enroll", func() {
		rec := s.do(http.MethodPost, "/admin/staff/"+st.ID.String()+"/embeddings", map[string]any{"descriptor": []float64{0.1, 0.2}})
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("enroll with the wrong width", func() {
		rec := s.do(http.MethodPost, "/admin/staff/"+st.ID.String()+"/embeddings", map[string]any{"descriptor": []float64{0.1}})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("attendance before any clock action", func() {
		rec := s.do(http.MethodGet, "/admin/staff/"+st.ID.String()+"/attendance?date=2025-03-04", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var record attendancemodels.Record
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &record))
		s.Equal(attendancemodels.StatusNotStarted, record.Status)
		s.Equal("2025-03-04", record.WorkDate.Format("2006-01-02"))
	})

	s.Run("malformed date", func() {
		rec := s.do(http.MethodGet, "/admin/staff/"+st.ID.String()+"/attendance?date=yesterday", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
