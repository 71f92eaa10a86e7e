// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// errDrained tells a worker the backlog is closed and empty.
var errDrained = errors.New("backlog drained")

// Backlog stores queued messages until a worker takes them.
type Backlog interface {
	// Push adds msg, returning ErrQueueFull when at capacity.
	Push(ctx context.Context, msg Message) error
	// Pop blocks until a message is available. It returns errDrained once
	// the backlog is closed and holds nothing more for this process.
	Pop() (Message, error)
	// Close stops accepting messages and releases blocked Pop calls.
	Close() error
}

// requeuer is implemented by backlogs that outlive the process. Mail a
// worker holds when Close gives up is handed back to them.
type requeuer interface {
	Requeue(ctx context.Context, msg Message) error
}

// requeueTimeout bounds handing an abandoned message back to the backlog.
const requeueTimeout = 2 * time.Second

// QueueConfig controls worker and retry behavior.
type QueueConfig struct {
	Workers    int
	MaxRetries uint64
	RetryBase  time.Duration
}

// DefaultQueueConfig returns the defaults used when a field is zero.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Workers:    2,
		MaxRetries: 3,
		RetryBase:  500 * time.Millisecond,
	}
}

// Queue accepts mail from the auth service and delivers it asynchronously.
type Queue struct {
	cfg       QueueConfig
	backlog   Backlog
	transport Transport
	logger    *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	// abandon cancels deliveries in progress; Close calls it.
	abandon context.CancelFunc
	wg      sync.WaitGroup
}

var _ auth.Mailer = (*Queue)(nil)

// NewQueue creates a queue. Workers are not running until Start.
func NewQueue(cfg QueueConfig, backlog Backlog, transport Transport, logger *slog.Logger) (*Queue, error) {
	if backlog == nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("backlog is required")
	}
	if transport == nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("transport is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	def := DefaultQueueConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	return &Queue{
		cfg:       cfg,
		backlog:   backlog,
		transport: transport,
		logger:    logger.With("component", "mail"),
	}, nil
}

// Send implements auth.Mailer. It only enqueues; delivery happens later.
func (q *Queue) Send(ctx context.Context, to, subject, body string) error {
	msg := NewMessage(to, subject, body)
	if msg.To == "" {
		Messages.WithLabelValues(ResultRejected).Inc()
		return oops.Code("MAIL_INVALID_RECIPIENT").Errorf("recipient is required")
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		Messages.WithLabelValues(ResultRejected).Inc()
		return oops.Code("MAIL_QUEUE_CLOSED").Wrap(ErrQueueClosed)
	}
	if err := q.backlog.Push(ctx, msg); err != nil {
		Messages.WithLabelValues(ResultRejected).Inc()
		return oops.Code("MAIL_ENQUEUE_FAILED").With("message_id", msg.ID).Wrap(err)
	}
	Messages.WithLabelValues(ResultQueued).Inc()
	q.logger.DebugContext(ctx, "mail queued", "message_id", msg.ID, "subject", msg.Subject)
	return nil
}

// Start launches the worker pool. Deliveries keep the values of ctx but
// not its cancellation: workers run until Close drains the backlog or its
// deadline passes. Start is a no-op after the first call.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	dctx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	q.abandon = abandon
	for i := range q.cfg.Workers {
		q.wg.Add(1)
		go q.work(dctx, i)
	}
	q.logger.Info("mail workers started", "workers", q.cfg.Workers)
}

// Close stops accepting mail and waits for workers to deliver everything
// left in the backlog. When ctx expires first, deliveries in progress are
// abandoned: a durable backlog gets the message back, otherwise it is
// dropped and logged. The error is then MAIL_DRAIN_TIMEOUT.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	abandon := q.abandon
	q.mu.Unlock()
	if abandon == nil {
		abandon = func() {}
	}

	if err := q.backlog.Close(); err != nil {
		errutil.LogWarn(ctx, q.logger, "closing mail backlog failed", err)
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		abandon()
		return nil
	case <-ctx.Done():
		abandon()
		return oops.Code("MAIL_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}

func (q *Queue) work(ctx context.Context, worker int) {
	defer q.wg.Done()
	logger := q.logger.With("worker", worker)
	for {
		msg, err := q.backlog.Pop()
		if errors.Is(err, errDrained) {
			return
		}
		if err != nil {
			errutil.LogWarn(ctx, logger, "mail backlog read failed", err)
			if sleepCtx(ctx, q.cfg.RetryBase) != nil {
				return
			}
			continue
		}
		q.deliver(ctx, logger, msg)
	}
}

func (q *Queue) deliver(ctx context.Context, logger *slog.Logger, msg Message) {
	backoff := retry.WithMaxRetries(q.cfg.MaxRetries, retry.NewExponential(q.cfg.RetryBase))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		DeliveryAttempts.Inc()
		if err := q.transport.Deliver(ctx, msg); err != nil {
			logger.DebugContext(ctx, "mail delivery attempt failed",
				"message_id", msg.ID, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		q.abandonDelivery(ctx, logger, msg)
		return
	}
	if err != nil {
		Messages.WithLabelValues(ResultFailed).Inc()
		errutil.LogError(ctx, logger, "mail delivery failed",
			oops.Code("MAIL_DELIVERY_FAILED").
				With("message_id", msg.ID).
				With("attempts", attempt).
				Wrap(err))
		return
	}
	Messages.WithLabelValues(ResultDelivered).Inc()
	logger.InfoContext(ctx, "mail delivered", "message_id", msg.ID, "attempts", attempt)
}

// abandonDelivery hands msg back to a durable backlog after Close gave up
// on it, or records it as lost.
func (q *Queue) abandonDelivery(ctx context.Context, logger *slog.Logger, msg Message) {
	if r, ok := q.backlog.(requeuer); ok {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
		defer cancel()
		err := r.Requeue(rctx, msg)
		if err == nil {
			Messages.WithLabelValues(ResultRequeued).Inc()
			logger.WarnContext(ctx, "mail requeued at shutdown", "message_id", msg.ID)
			return
		}
		errutil.LogWarn(ctx, logger, "requeue at shutdown failed", err)
	}
	Messages.WithLabelValues(ResultAbandoned).Inc()
	errutil.LogError(ctx, logger, "mail abandoned at shutdown",
		oops.Code("MAIL_DELIVERY_ABANDONED").With("message_id", msg.ID).Errorf("drain deadline passed"))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
