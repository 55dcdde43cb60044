// Package lockout limits repeated PIN failures per (branch, device).
package lockout

import (
	"fmt"
	"time"

	id "kiosk/pkg/domain"
)

// Record is the failure state for one key. Stores count failures inside a
// sliding window; the service decides when to lock.
type Record struct {
	Identifier    string     `json:"identifier"`
	FailureCount  int        `json:"failure_count"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LastFailureAt time.Time  `json:"last_failure_at"`
}

// Key scopes lockout state to a kiosk at a branch.
func Key(branchID id.BranchID, deviceID string) string {
	return fmt.Sprintf("pin:%s:%s", branchID, deviceID)
}

func (r *Record) IsLockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

func (r *Record) ShouldLock(threshold int) bool {
	return threshold > 0 && r.FailureCount >= threshold
}

func (r *Record) ApplyLock(d time.Duration, now time.Time) {
	until := now.Add(d)
	r.LockedUntil = &until
}

// Config holds the lockout thresholds.
type Config struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Threshold: 5,
		Window:    15 * time.Minute,
		Duration:  15 * time.Minute,
	}
}
