//go:build integration

package terminal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	ctx    context.Context
	redis  *containers.RedisContainer
	locker *RedisLocker
}

func TestRedisLockerSuite(t *testing.T) {
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.locker = NewRedisLocker(s.redis.Client, time.Minute)
}

func (s *RedisLockerSuite) TestAcquire() {
	s.Run("second holder is told the terminal is busy", func() {
		release, err := s.locker.Acquire(s.ctx, "kiosk-1")
		s.Require().NoError(err)

		_, err = s.locker.Acquire(s.ctx, "kiosk-1")
		s.True(dErrors.HasCode(err, dErrors.CodeTerminalBusy))

		other, err := s.locker.Acquire(s.ctx, "kiosk-2")
		s.Require().NoError(err)
		other()

		release()
		again, err := s.locker.Acquire(s.ctx, "kiosk-1")
		s.Require().NoError(err)
		again()
	})

	s.Run("stale release does not drop a newer holder", func() {
		short := NewRedisLocker(s.redis.Client, 50*time.Millisecond)
		stale, err := short.Acquire(s.ctx, "kiosk-3")
		s.Require().NoError(err)

		s.Eventually(func() bool {
			n, err := s.redis.Client.Exists(s.ctx, lockKey("kiosk-3")).Result()
			return err == nil && n == 0
		}, 2*time.Second, 20*time.Millisecond)

		current, err := s.locker.Acquire(s.ctx, "kiosk-3")
		s.Require().NoError(err)
		stale()

		_, err = s.locker.Acquire(s.ctx, "kiosk-3")
		s.True(dErrors.HasCode(err, dErrors.CodeTerminalBusy))
		current()
	})
}
