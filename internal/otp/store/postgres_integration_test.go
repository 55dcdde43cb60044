//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	branchmodels "kiosk/internal/branch/models"
	branchstore "kiosk/internal/branch/store"
	"kiosk/internal/otp/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/testutil/containers"
)

type PostgresOTPSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	store    *PostgresStore
	branchID id.BranchID
	now      time.Time
}

func TestPostgresOTPSuite(t *testing.T) {
	suite.Run(t, new(PostgresOTPSuite))
}

func (s *PostgresOTPSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
	s.now = time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
}

func (s *PostgresOTPSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(s.ctx))
	b, err := branchmodels.NewBranch(id.BranchID(uuid.New()), "Main", nil, branchmodels.SecurityPolicy{}, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(branchstore.NewPostgres(s.postgres.DB).Create(s.ctx, b))
	s.branchID = b.ID
}

func (s *PostgresOTPSuite) issue(code string) *models.Request {
	r, err := models.NewRequest(id.OTPRequestID(uuid.New()), code, s.branchID,
		models.DeviceMetadata{DeviceID: "kiosk-1", Name: "Front desk", Type: "tablet"}, s.now, models.DefaultWindow)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, r))
	return r
}

func (s *PostgresOTPSuite) TestVerifyIsSingleUse() {
	r := s.issue("123456")

	s.Run("pending code is found by branch and code", func() {
		found, err := s.store.FindPending(s.ctx, s.branchID, "123456")
		s.Require().NoError(err)
		s.Equal(r.ID, found.ID)
		s.Equal("kiosk-1", found.Device.DeviceID)
	})

	s.Run("first verification wins", func() {
		s.Require().NoError(s.store.MarkVerified(s.ctx, r.ID, s.now.Add(time.Minute)))
		s.ErrorIs(s.store.MarkVerified(s.ctx, r.ID, s.now.Add(2*time.Minute)), sentinel.ErrConflict)

		found, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, found.Status)
	})

	s.Run("verified code is no longer pending", func() {
		_, err := s.store.FindPending(s.ctx, s.branchID, "123456")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresOTPSuite) TestExpiry() {
	s.Run("verification after expiry conflicts", func() {
		r := s.issue("654321")
		s.ErrorIs(s.store.MarkVerified(s.ctx, r.ID, s.now.Add(models.DefaultWindow+time.Second)), sentinel.ErrConflict)
	})

	s.Run("expired request cannot be expired twice", func() {
		r := s.issue("111111")
		s.Require().NoError(s.store.MarkExpired(s.ctx, r.ID))
		s.ErrorIs(s.store.MarkExpired(s.ctx, r.ID), sentinel.ErrConflict)
	})
}

func (s *PostgresOTPSuite) TestFailPending() {
	r := s.issue("222222")

	n, err := s.store.FailPending(s.ctx, s.branchID, "kiosk-1")
	s.Require().NoError(err)
	s.Equal(1, n)

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, found.Status)

	_, err = s.store.FindPending(s.ctx, s.branchID, "222222")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
