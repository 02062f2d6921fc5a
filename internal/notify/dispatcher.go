package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joshua-takyi/venuebook/internal/models"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notifier is closed")
)

type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	SendTimeout time.Duration
}

func (o *DispatcherOptions) defaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 15 * time.Second
	}
}

// Dispatcher delivers notifications from a bounded in-process queue. Dispatch never
// waits for delivery.
type Dispatcher struct {
	mailer Mailer
	opts   DispatcherOptions
	logger *slog.Logger

	queue  chan *models.Notification
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
}

func NewDispatcher(mailer Mailer, opts DispatcherOptions, logger *slog.Logger) *Dispatcher {
	opts.defaults()
	d := &Dispatcher{
		mailer: mailer,
		opts:   opts,
		logger: logger,
		queue:  make(chan *models.Notification, opts.QueueSize),
		stop:   make(chan struct{}),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, n *models.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting work and waits for queued notifications to drain or ctx to end.
// Retries still sleeping when ctx ends are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(d.stop)
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

// backoff returns the wait before the given retry (1 based), doubling up to MaxBackoff.
func (d *Dispatcher) backoff(retry int) time.Duration {
	wait := d.opts.BaseBackoff
	for i := 1; i < retry; i++ {
		wait *= 2
		if wait >= d.opts.MaxBackoff {
			return d.opts.MaxBackoff
		}
	}
	return wait
}

func (d *Dispatcher) deliver(n *models.Notification) {
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.SendTimeout)
		err := Deliver(ctx, d.mailer, n)
		cancel()
		if err == nil {
			d.logger.Info("notification sent", "kind", n.Kind, "to", n.To, "attempt", attempt)
			return
		}
		if IsPermanent(err) {
			d.logger.Error("dropping notification", "kind", n.Kind, "error", err)
			return
		}
		if attempt == d.opts.MaxAttempts {
			d.logger.Error("notification failed, giving up",
				"kind", n.Kind,
				"to", n.To,
				"attempts", attempt,
				"error", err,
			)
			return
		}

		wait := d.backoff(attempt)
		d.logger.Warn("notification failed, retrying", "kind", n.Kind, "attempt", attempt, "retry_in", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-d.stop:
			return
		}
	}
}
