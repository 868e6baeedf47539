package notification

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guildgate/internal/domain"
)

// Sink delivers one notification event to the external webhook.
type Sink interface {
	Send(ctx context.Context, event domain.NotificationEvent) error
}

// NoOpSink is used when no webhook is configured.
type NoOpSink struct{}

func (NoOpSink) Send(_ context.Context, event domain.NotificationEvent) error {
	slog.Warn("webhook not configured, skipping notification", "user_id", event.Identity.ID)
	return nil
}

// Dispatcher hands events to a Sink on a background worker. Dispatch never
// blocks and never reports failure: delivery errors are logged and dropped.
type Dispatcher struct {
	sink      Sink
	timeout   time.Duration
	ch        chan domain.NotificationEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	mu        sync.Mutex // guards closed and sends on ch
	closed    bool
	closeOnce sync.Once
}

// NewDispatcher starts a worker that forwards up to bufferSize queued events
// to sink, bounding each delivery by timeout.
func NewDispatcher(sink Sink, bufferSize int, timeout time.Duration) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:    sink,
		timeout: timeout,
		ch:      make(chan domain.NotificationEvent, bufferSize),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event domain.NotificationEvent) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.sink.Send(ctx, event); err != nil {
		slog.Error("notification delivery failed",
			"attempt_id", event.AttemptID,
			"user_id", event.Identity.ID,
			"err", err,
		)
		return
	}
	slog.Info("notification delivered", "attempt_id", event.AttemptID, "user_id", event.Identity.ID)
}

// Dispatch queues event for delivery. A full queue or a closed dispatcher
// drops the event.
func (d *Dispatcher) Dispatch(event domain.NotificationEvent) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.dropped.Add(1)
		slog.Warn("notification dispatcher closed, dropping event", "attempt_id", event.AttemptID, "user_id", event.Identity.ID)
		return
	}
	select {
	case d.ch <- event:
	default:
		d.dropped.Add(1)
		slog.Warn("notification queue full, dropping event", "attempt_id", event.AttemptID, "user_id", event.Identity.ID)
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many events were discarded because the queue was
// full or the dispatcher was closed.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
