package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "kiosk/pkg/platform/audit"
)

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []audit.OutboxMessage
	published map[uuid.UUID]bool
	failed    map[uuid.UUID]int
}

func newFakeOutbox(n int) *fakeOutbox {
	o := &fakeOutbox{published: map[uuid.UUID]bool{}, failed: map[uuid.UUID]int{}}
	for range n {
		o.pending = append(o.pending, audit.OutboxMessage{ID: uuid.New(), EventType: "time_in"})
	}
	return o
}

func (o *fakeOutbox) Pending(_ context.Context, limit int) ([]audit.OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []audit.OutboxMessage
	for _, m := range o.pending {
		if !o.published[m.ID] && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (o *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		o.published[id] = true
	}
	return nil
}

func (o *fakeOutbox) MarkFailed(_ context.Context, ids []uuid.UUID, _ error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		o.failed[id]++
	}
	return nil
}

type fakeProducer struct {
	err  error
	sent []audit.OutboxMessage
}

func (p *fakeProducer) Publish(_ context.Context, msgs []audit.OutboxMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msgs...)
	return nil
}

type WorkerSuite struct {
	suite.Suite
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) TestRelayOnce() {
	s.Run("publishes a batch and marks it published", func() {
		outbox := newFakeOutbox(3)
		producer := &fakeProducer{}
		w := NewWorker(outbox, producer, WithBatchSize(2))

		n, err := w.RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Equal(2, n)
		s.Len(producer.sent, 2)

		n, err = w.RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Equal(1, n)

		n, err = w.RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("producer failure leaves messages pending and counts the attempt", func() {
		outbox := newFakeOutbox(2)
		w := NewWorker(outbox, &fakeProducer{err: errors.New("broker down")})

		_, err := w.RelayOnce(context.Background())
		s.Require().Error(err)

		pending, _ := outbox.Pending(context.Background(), 10)
		s.Len(pending, 2)
		for _, m := range pending {
			s.Equal(1, outbox.failed[m.ID])
		}
	})
}

func (s *WorkerSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWorker(newFakeOutbox(0), &fakeProducer{}).Run(ctx)
	s.ErrorIs(err, context.Canceled)
}
