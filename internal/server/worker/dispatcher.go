// Package worker delivers outgoing mail in the background so request
// handlers never wait on a mail server.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/mail"
	"github.com/woodraft/draftauth/internal/server/metrics"
)

// attemptTimeout bounds a single delivery attempt.
const attemptTimeout = 30 * time.Second

// Options tune the dispatcher. Zero values pick small defaults.
type Options struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
	BaseDelay  time.Duration
}

// Dispatcher drains a bounded queue of messages with a fixed pool of
// goroutines, retrying failed deliveries with exponential backoff.
type Dispatcher struct {
	mailer  mail.Mailer
	logger  logging.Logger
	metrics *metrics.Metrics
	opts    Options

	mu      sync.RWMutex
	queue   chan mail.Message
	started bool
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(mailer mail.Mailer, logger logging.Logger, m *metrics.Metrics, opts Options) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	return &Dispatcher{
		mailer:  mailer,
		logger:  logger.With("component", "mail-dispatcher"),
		metrics: m,
		opts:    opts,
		queue:   make(chan mail.Message, opts.QueueSize),
	}
}

// Start launches the workers. Cancelling ctx does not stop them; Stop does,
// so queued mail is still delivered during shutdown.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for msg := range d.queue {
				d.deliver(runCtx, msg)
			}
		}()
	}
	d.logger.Info(ctx, "mail dispatcher started", "workers", d.opts.Workers, "queue", d.opts.QueueSize)
}

// Enqueue hands msg to the workers without blocking. It fails with
// common.ErrQueueFull when the queue is at capacity and with
// common.ErrDispatcherStopped after Stop.
func (d *Dispatcher) Enqueue(msg mail.Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return common.ErrDispatcherStopped
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		d.metrics.MailDeliveriesTotal.WithLabelValues(metrics.StatusDropped).Inc()
		return common.ErrQueueFull
	}
}

// Stop refuses new messages and waits for queued ones to be delivered.
// If ctx ends first, in-flight retries are abandoned and ctx.Err() is
// returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
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
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg mail.Message) {
	backoff := retry.WithMaxRetries(d.opts.MaxRetries, retry.NewExponential(d.opts.BaseDelay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			d.metrics.MailDeliveriesTotal.WithLabelValues(metrics.StatusRetried).Inc()
		}

		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		if err := d.mailer.Send(sendCtx, msg); err != nil {
			d.logger.Warn(ctx, "mail delivery attempt failed", "to", msg.To, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})

	if err != nil {
		d.metrics.MailDeliveriesTotal.WithLabelValues(metrics.StatusError).Inc()
		d.logger.Error(ctx, "mail delivery failed",
			"to", msg.To, "attempts", attempt,
			"error", errors.Join(common.ErrMailDeliveryFailed, err))
		return
	}

	d.metrics.MailDeliveriesTotal.WithLabelValues(metrics.StatusOK).Inc()
	d.logger.Info(ctx, "mail delivered", "to", msg.To, "attempts", attempt)
}
