// Package publisher persists activity-log entries off the request path.
//
// In synchronous mode Emit writes straight to the store. With an async buffer,
// Emit enqueues into a bounded ring buffer that a background loop drains;
// when the buffer overflows the oldest entries are dropped. A circuit breaker
// stops hammering an unhealthy store.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "kiosk/pkg/platform/audit"
	"kiosk/pkg/platform/circuit"
)

const (
	defaultBatchSize     = 64
	defaultFlushInterval = 200 * time.Millisecond
)

// Publisher implements audit.Emitter.
type Publisher struct {
	store   audit.Store
	buffer  *RingBuffer
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	flushInterval time.Duration
	wake          chan struct{}
	stop          chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous persistence through a ring buffer of the given capacity.
func WithAsyncBuffer(capacity int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(capacity)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBreaker overrides the default store circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		if b != nil {
			p.breaker = b
		}
	}
}

// WithFlushInterval sets how often the async loop drains the buffer when idle.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// NewPublisher creates a publisher over store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		breaker: circuit.New("activity-log-store",
			circuit.WithFailureThreshold(5),
			circuit.WithCooldown(30*time.Second),
		),
		now:           time.Now,
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wake = make(chan struct{}, 1)
		p.stop = make(chan struct{})
		p.done = make(chan struct{})
		go p.run()
	}
	return p
}

// Emit records an entry. Missing IDs and timestamps are filled in.
func (p *Publisher) Emit(ctx context.Context, entry audit.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = p.now()
	}

	if p.buffer == nil {
		return p.persist(ctx, entry)
	}

	if p.buffer.Enqueue(entry) {
		p.metrics.incDropped()
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the async loop after draining buffered entries.
func (p *Publisher) Close() {
	if p.buffer == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.stop)
		<-p.done
	})
}

func (p *Publisher) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			p.drain()
			return
		case <-p.wake:
			p.drain()
		case <-ticker.C:
			p.drain()
		}
	}
}

func (p *Publisher) drain() {
	for {
		batch := p.buffer.DequeueBatch(defaultBatchSize)
		if len(batch) == 0 {
			return
		}
		for _, entry := range batch {
			// Entries outlive the request that produced them.
			_ = p.persist(context.Background(), entry)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, entry audit.Entry) error {
	if !p.breaker.Allow() {
		p.metrics.incCircuitBreakerDropped()
		return nil
	}

	if err := p.store.Append(ctx, entry); err != nil {
		p.metrics.incPersistFailures()
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.metrics.setCircuitBreakerState(true)
			if p.logger != nil {
				p.logger.Warn("activity log store circuit opened", "error", err)
			}
		}
		if p.logger != nil {
			p.logger.Warn("failed to persist activity log entry",
				"action", string(entry.Action),
				"error", err,
			)
		}
		return err
	}

	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.metrics.setCircuitBreakerState(false)
		if p.logger != nil {
			p.logger.Info("activity log store circuit closed")
		}
	}
	p.metrics.incPersisted()
	return nil
}
