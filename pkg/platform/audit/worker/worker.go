// Package worker relays activity-log outbox records to the message broker.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "kiosk/pkg/platform/audit"
)

// Outbox is the read/ack side of the transactional outbox.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]audit.OutboxMessage, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
	MarkFailed(ctx context.Context, ids []uuid.UUID, cause error) error
}

// Producer publishes a batch of outbox messages. Publish either delivers the
// whole batch or returns an error.
type Producer interface {
	Publish(ctx context.Context, msgs []audit.OutboxMessage) error
}

// Worker polls the outbox and relays pending messages. Delivery is
// at-least-once; consumers dedupe on the entry ID in the payload.
type Worker struct {
	outbox    Outbox
	producer  Producer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(outbox Outbox, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		producer:  producer,
		logger:    slog.Default(),
		interval:  time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := w.RelayOnce(ctx)
				if err != nil {
					w.logger.WarnContext(ctx, "outbox relay failed", "error", err)
					break
				}
				if n < w.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many messages were relayed.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	msgs, err := w.outbox.Pending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	if err := w.producer.Publish(ctx, msgs); err != nil {
		if markErr := w.outbox.MarkFailed(ctx, ids, err); markErr != nil {
			w.logger.WarnContext(ctx, "failed to record outbox failure", "error", markErr)
		}
		return 0, err
	}
	if err := w.outbox.MarkPublished(ctx, ids); err != nil {
		return 0, err
	}
	return len(msgs), nil
}
