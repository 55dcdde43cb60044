package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
}

func (s *BreakerSuite) clock() time.Time { return s.now }

func (s *BreakerSuite) TestOpening() {
	s.Run("starts closed", func() {
		b := New("activity-log-store")
		s.Equal(StateClosed, b.State())
		s.Equal("closed", b.State().String())
		s.Equal("activity-log-store", b.Name())
		s.True(b.Allow())
	})

	s.Run("opens on the threshold failure only", func() {
		b := New("activity-log-store", WithFailureThreshold(3))
		for range 2 {
			fallback, change := b.RecordFailure()
			s.False(fallback)
			s.False(change.Opened)
		}
		fallback, change := b.RecordFailure()
		s.True(fallback)
		s.True(change.Opened)
		s.Equal("open", b.State().String())

		_, change = b.RecordFailure()
		s.False(change.Opened, "an open breaker reports no new transition")
	})

	s.Run("a success breaks the failure streak", func() {
		b := New("activity-log-store", WithFailureThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		s.False(b.IsOpen())
	})
}

func (s *BreakerSuite) TestRecovery() {
	s.Run("closes after consecutive successes", func() {
		b := New("activity-log-store", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()

		primary, change := b.RecordSuccess()
		s.False(primary)
		s.False(change.Closed)

		primary, change = b.RecordSuccess()
		s.True(primary)
		s.True(change.Closed)
		s.False(b.IsOpen())
	})

	s.Run("a failure while half-recovered restarts the success count", func() {
		b := New("activity-log-store", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordSuccess()
		s.True(b.IsOpen())
	})

	s.Run("reset closes immediately", func() {
		b := New("activity-log-store", WithFailureThreshold(1))
		b.RecordFailure()
		b.Reset()
		s.Equal(StateClosed, b.State())
	})
}

func (s *BreakerSuite) TestProbeCooldown() {
	b := New("activity-log-store",
		WithFailureThreshold(1),
		WithCooldown(30*time.Second),
		WithClock(s.clock),
	)
	b.RecordFailure()

	s.False(b.Allow(), "no trial call inside the cooldown")
	s.now = s.now.Add(30 * time.Second)
	s.True(b.Allow())
	s.False(b.Allow(), "one trial call per cooldown period")
}
