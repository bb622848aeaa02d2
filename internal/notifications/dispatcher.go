package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/pkg/enums"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/metrics"
	"github.com/angelmondragon/freshlane/pkg/outbox"
)

// Notification is one event handed to the dispatcher after a commit.
type Notification struct {
	Event         enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *outbox.ActorRef
	Data          any
	OccurredAt    time.Time
}

// Notifier is what domain services depend on.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Sink persists or forwards a notification.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// Options sizes the dispatcher.
type Options struct {
	QueueSize      int
	Workers        int
	DeliverTimeout time.Duration
}

// Dispatcher queues notifications in memory and hands them to the sink from
// worker goroutines. Notify never blocks: a full queue drops the event.
type Dispatcher struct {
	sink    Sink
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
	queue   chan queued
	workers int
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

type queued struct {
	ctx context.Context
	n   Notification
}

var errDispatcherClosed = errors.New("dispatcher closed")

// NewDispatcher builds a dispatcher. Call Start before notifying.
func NewDispatcher(sink Sink, opts Options, logg *logger.Logger, m *metrics.EngineMetrics) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("notification sink required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.DeliverTimeout <= 0 {
		opts.DeliverTimeout = 10 * time.Second
	}
	return &Dispatcher{
		sink:    sink,
		logg:    logg,
		metrics: m,
		queue:   make(chan queued, opts.QueueSize),
		workers: opts.Workers,
		timeout: opts.DeliverTimeout,
	}, nil
}

// Start launches the workers. It is safe to call once.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

// Notify enqueues n without blocking.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if err := d.enqueue(ctx, n); err != nil {
		d.metrics.IncNotification(string(n.Event), "dropped")
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"event_type":   n.Event,
			"aggregate_id": n.AggregateID.String(),
		})
		d.logg.Warn(logCtx, "notification dropped: "+err.Error())
		return
	}
	d.metrics.IncNotification(string(n.Event), "queued")
}

func (d *Dispatcher) enqueue(ctx context.Context, n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errDispatcherClosed
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	// detached: delivery outlives the request
	item := queued{ctx: context.WithoutCancel(ctx), n: n}
	select {
	case d.queue <- item:
		return nil
	default:
		return errors.New("queue full")
	}
}

// Close stops accepting notifications and waits for queued ones to drain.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for item := range d.queue {
		d.deliver(item)
	}
}

func (d *Dispatcher) deliver(item queued) {
	ctx, cancel := context.WithTimeout(item.ctx, d.timeout)
	defer cancel()
	if err := d.sink.Deliver(ctx, item.n); err != nil {
		d.metrics.IncNotification(string(item.n.Event), "failed")
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"event_type":   item.n.Event,
			"aggregate_id": item.n.AggregateID.String(),
		})
		d.logg.Error(logCtx, "notification delivery failed", err)
		return
	}
	d.metrics.IncNotification(string(item.n.Event), "delivered")
}

// Discard is a Notifier that drops everything.
type Discard struct{}

func (Discard) Notify(context.Context, Notification) {}

// Actor builds the envelope actor for a user acting in a role.
func Actor(id uuid.UUID, role enums.ActorRole) *outbox.ActorRef {
	if id == uuid.Nil && role == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: id, Role: string(role)}
}
