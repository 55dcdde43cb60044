package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kiosk/internal/otp/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
)

type OTPStoreSuite struct {
	suite.Suite
	store  *InMemory
	ctx    context.Context
	now    time.Time
	branch id.BranchID
}

func TestOTPStoreSuite(t *testing.T) {
	suite.Run(t, new(OTPStoreSuite))
}

func (s *OTPStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	s.branch = id.BranchID(uuid.New())
}

func (s *OTPStoreSuite) newRequest(code string, createdAt time.Time) *models.Request {
	r, err := models.NewRequest(id.OTPRequestID(uuid.New()), code, s.branch,
		models.DeviceMetadata{DeviceID: "kiosk-1"}, createdAt, 10*time.Minute)
	s.Require().NoError(err)
	return r
}

func (s *OTPStoreSuite) TestFindPending() {
	older := s.newRequest("111111", s.now)
	newer := s.newRequest("111111", s.now.Add(time.Minute))
	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))

	s.Run("returns the newest pending request", func() {
		found, err := s.store.FindPending(s.ctx, s.branch, "111111")
		s.Require().NoError(err)
		s.Equal(newer.ID, found.ID)
	})

	s.Run("other branch does not match", func() {
		_, err := s.store.FindPending(s.ctx, id.BranchID(uuid.New()), "111111")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *OTPStoreSuite) TestMarkVerifiedIsSingleUse() {
	r := s.newRequest("222222", s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	const workers = 20
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.MarkVerified(s.ctx, r.ID, s.now.Add(time.Minute)); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, found.Status)
}

func (s *OTPStoreSuite) TestExpiry() {
	r := s.newRequest("333333", s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	s.Run("expired request cannot be verified", func() {
		err := s.store.MarkVerified(s.ctx, r.ID, s.now.Add(10*time.Minute))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("marks expired once", func() {
		s.Require().NoError(s.store.MarkExpired(s.ctx, r.ID))
		s.ErrorIs(s.store.MarkExpired(s.ctx, r.ID), sentinel.ErrConflict)

		_, err := s.store.FindPending(s.ctx, s.branch, "333333")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *OTPStoreSuite) TestFailPending() {
	pending := s.newRequest("444444", s.now)
	verified := s.newRequest("555555", s.now)
	s.Require().NoError(s.store.Create(s.ctx, pending))
	s.Require().NoError(s.store.Create(s.ctx, verified))
	s.Require().NoError(s.store.MarkVerified(s.ctx, verified.ID, s.now.Add(time.Minute)))

	n, err := s.store.FailPending(s.ctx, s.branch, "kiosk-1")
	s.Require().NoError(err)
	s.Equal(1, n)

	found, err := s.store.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, found.Status)
	found, err = s.store.FindByID(s.ctx, verified.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, found.Status)

	n, err = s.store.FailPending(s.ctx, s.branch, "kiosk-1")
	s.Require().NoError(err)
	s.Zero(n)
}
