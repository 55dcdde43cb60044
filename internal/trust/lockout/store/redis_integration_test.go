//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kiosk/internal/trust/lockout"
	"kiosk/internal/trust/lockout/store"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/testutil/containers"
)

type RedisLockoutSuite struct {
	suite.Suite
	ctx     context.Context
	redis   *containers.RedisContainer
	store   *store.RedisStore
	service *lockout.Service
	branch  id.BranchID
}

func TestRedisLockoutSuite(t *testing.T) {
	suite.Run(t, new(RedisLockoutSuite))
}

func (s *RedisLockoutSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisLockoutSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.service = lockout.New(s.store, lockout.WithConfig(lockout.Config{
		Threshold: 3,
		Window:    time.Minute,
		Duration:  time.Minute,
	}))
	s.branch = id.BranchID(uuid.New())
}

func (s *RedisLockoutSuite) TestStore() {
	key := lockout.Key(s.branch, "kiosk-1")

	s.Run("unknown key has no record", func() {
		r, err := s.store.Get(s.ctx, key)
		s.Require().NoError(err)
		s.Nil(r)
	})

	s.Run("failures accumulate", func() {
		for i := 1; i <= 2; i++ {
			r, err := s.store.RecordFailure(s.ctx, key, time.Now(), time.Minute)
			s.Require().NoError(err)
			s.Equal(i, r.FailureCount)
		}
	})

	s.Run("lock resets the counter", func() {
		until := time.Now().Add(time.Minute)
		s.Require().NoError(s.store.Lock(s.ctx, key, until))
		r, err := s.store.Get(s.ctx, key)
		s.Require().NoError(err)
		s.Require().NotNil(r.LockedUntil)
		s.Equal(until.UnixMilli(), r.LockedUntil.UnixMilli())
		s.Zero(r.FailureCount)
	})

	s.Run("clear removes both keys", func() {
		s.Require().NoError(s.store.Clear(s.ctx, key))
		r, err := s.store.Get(s.ctx, key)
		s.Require().NoError(err)
		s.Nil(r)
	})
}

func (s *RedisLockoutSuite) TestServiceLocksAfterThreshold() {
	for range 2 {
		locked, err := s.service.RecordFailure(s.ctx, s.branch, "kiosk-1")
		s.Require().NoError(err)
		s.False(locked)
	}
	s.NoError(s.service.Check(s.ctx, s.branch, "kiosk-1"))

	locked, err := s.service.RecordFailure(s.ctx, s.branch, "kiosk-1")
	s.Require().NoError(err)
	s.True(locked)

	err = s.service.Check(s.ctx, s.branch, "kiosk-1")
	s.True(dErrors.HasCode(err, dErrors.CodePinLocked))
	s.NoError(s.service.Check(s.ctx, s.branch, "kiosk-2"), "lockout is scoped per device")
}
