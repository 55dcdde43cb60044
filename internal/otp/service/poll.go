package service

import (
	"context"
	"sync"
	"time"

	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
)

// Poll is a running wait for out-of-band registration.
type Poll struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

// Cancel stops polling. Wait then returns context.Canceled unless the poll
// had already finished.
func (p *Poll) Cancel() {
	p.cancel()
}

// Wait blocks until the poll ends. It returns nil once the device is
// registered, a registration_timeout error after the final poll, or the
// context error when cancelled.
func (p *Poll) Wait() error {
	<-p.done
	return p.err
}

// Done is closed when the poll ends.
func (p *Poll) Done() <-chan struct{} {
	return p.done
}

func (p *Poll) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// AwaitRegistration polls every PollInterval, up to MaxPolls times, until an
// active device exists for (branch, device). onRegistered runs exactly once
// on success. Check errors are logged and count as an unsuccessful poll. On
// timeout the device's pending codes at the branch are marked failed.
func (s *Service) AwaitRegistration(ctx context.Context, deviceID string, branchID id.BranchID, onRegistered func()) *Poll {
	pollCtx, cancel := context.WithCancel(ctx)
	p := &Poll{cancel: cancel, done: make(chan struct{})}

	s.metrics.RegistrationPoll(1)
	go func() {
		defer s.metrics.RegistrationPoll(-1)
		defer cancel()
		p.finish(s.poll(pollCtx, deviceID, branchID, onRegistered))
	}()
	return p
}

func (s *Service) poll(ctx context.Context, deviceID string, branchID id.BranchID, onRegistered func()) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for polls := 0; polls < s.cfg.MaxPolls; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		polls++

		registered, err := s.checker.IsRegistered(ctx, branchID, deviceID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.logger != nil {
				s.logger.WarnContext(ctx, "registration check failed",
					"branch_id", branchID.String(),
					"device_id", deviceID,
					"poll", polls,
					"error", err,
				)
			}
			continue
		}
		if registered {
			if onRegistered != nil {
				onRegistered()
			}
			return nil
		}
	}
	s.metrics.IncOTP("await", "timeout")
	if n, err := s.store.FailPending(ctx, branchID, deviceID); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to close pending otp requests",
				"branch_id", branchID.String(),
				"device_id", deviceID,
				"error", err,
			)
		}
	} else if n > 0 {
		s.metrics.IncOTP("await", "failed")
	}
	return dErrors.New(dErrors.CodeRegistrationTimeout, "device was not registered in time")
}
