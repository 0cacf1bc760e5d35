package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/wxledgerhq/wxledger/internal/auth"
	"github.com/wxledgerhq/wxledger/internal/bus"
	"github.com/wxledgerhq/wxledger/internal/history"
	"github.com/wxledgerhq/wxledger/internal/ledger"
	"github.com/wxledgerhq/wxledger/internal/monitor"
)

// Failure kinds reported in delivery events.
const (
	FailureTransientExhausted = "transient-exhausted"
	FailureRejected           = "rejected"
	FailureAuth               = "auth"
	FailureCancelled          = "cancelled"
)

// Options configures the pool.
type Options struct {
	Workers      int           // concurrent outbound requests, default 4
	QueueSize    int           // buffered tasks ahead of the workers, default 64
	MaxAttempts  int           // transient retry bound, default 3
	BackoffBase  time.Duration // first retry delay, default 2s
	RateLimitRPM int           // outbound requests per minute, 0 = unlimited
	ReplyEnabled bool          // send replies back into the chat
	BookID       string        // ledger account book to post into
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	return o
}

// Pool delivers admitted messages on a fixed set of workers, bounding the
// number of concurrent ledger calls. Completion order across workers is not
// submission order; each task carries its own fingerprint and does not
// depend on siblings.
type Pool struct {
	client  *ledger.Client
	creds   *auth.Manager
	replier *Replier
	events  bus.EventPublisher
	store   history.Store
	limiter *rate.Limiter
	tracer  trace.Tracer
	opts    Options

	queue chan Task
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool creates a delivery pool.
func NewPool(client *ledger.Client, creds *auth.Manager, replier *Replier, events bus.EventPublisher, store history.Store, opts Options) *Pool {
	o := opts.withDefaults()
	var limiter *rate.Limiter
	if o.RateLimitRPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(o.RateLimitRPM)/60.0), o.Workers)
	}
	return &Pool{
		client:  client,
		creds:   creds,
		replier: replier,
		events:  events,
		store:   store,
		limiter: limiter,
		tracer:  otel.Tracer("wxledger/delivery"),
		opts:    o,
		queue:   make(chan Task, o.QueueSize),
	}
}

// Start launches the workers. ctx cancellation aborts in-flight network
// calls; orderly shutdown should prefer Drain, which lets in-flight tasks
// finish (an interrupted task may already have caused a remote side effect).
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.queue {
				p.deliver(ctx, task)
			}
		}()
	}
	slog.Info("delivery pool started", "workers", p.opts.Workers, "max_attempts", p.opts.MaxAttempts)
}

// Submit implements monitor.Sink. After Drain has begun, submissions are
// dropped with a warning — the poll loops are already stopping. The lock is
// held across the send so Drain cannot close the queue under it; a full
// queue therefore stalls Drain until the workers make room, never panics.
func (p *Pool) Submit(msg monitor.AdmittedMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		slog.Warn("delivery pool closed, dropping message", "conversation", msg.Conversation, "fingerprint", msg.Fingerprint)
		return
	}
	p.queue <- newTask(msg)
}

// Drain stops accepting tasks and waits up to timeout for queued and
// in-flight tasks to finish.
func (p *Pool) Drain(timeout time.Duration) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("delivery pool drained")
	case <-time.After(timeout):
		slog.Warn("delivery pool drain timed out", "timeout", timeout)
	}
}

// deliver runs one task to a terminal outcome.
func (p *Pool) deliver(ctx context.Context, task Task) {
	ctx, span := p.tracer.Start(ctx, "delivery.task", trace.WithAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.String("conversation", task.Msg.Conversation),
		attribute.String("fingerprint", task.Msg.Fingerprint),
	))
	defer span.End()

	authRetried := false
	for {
		task.Attempt++

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.fail(ctx, span, task, FailureCancelled, err)
				return
			}
		}

		token := p.creds.Token()
		outcome, err := p.client.SmartAccounting(ctx, token, p.opts.BookID, task.Msg.Text, task.Msg.Sender)
		if err == nil {
			p.complete(ctx, span, task, outcome)
			return
		}

		switch {
		case errors.Is(err, ledger.ErrUnauthorized):
			if authRetried {
				p.fail(ctx, span, task, FailureAuth, err)
				return
			}
			authRetried = true
			slog.Warn("delivery unauthorized, forcing credential refresh", "task", task.ID, "attempt", task.Attempt)
			if rerr := p.creds.ForceRefresh(ctx, token); rerr != nil {
				p.fail(ctx, span, task, FailureAuth, rerr)
				return
			}
			// Retry the same submission exactly once with the new token.

		case errors.Is(err, ledger.ErrTransient):
			if task.Attempt >= p.opts.MaxAttempts {
				p.fail(ctx, span, task, FailureTransientExhausted, err)
				return
			}
			delay := p.backoff(task.Attempt)
			slog.Warn("transient delivery failure, backing off", "task", task.ID, "attempt", task.Attempt, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				p.fail(ctx, span, task, FailureCancelled, ctx.Err())
				return
			case <-time.After(delay):
			}

		default:
			// Explicit rejection (or unexpected error): permanent, no requeue.
			p.failRejected(ctx, span, task, err)
			return
		}
	}
}

// backoff returns the delay before retry attempt+1: base doubled per attempt
// with up to 50% jitter, capped at 30s.
func (p *Pool) backoff(attempt int) time.Duration {
	d := p.opts.BackoffBase << (attempt - 1)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

func (p *Pool) complete(ctx context.Context, span trace.Span, task Task, outcome *ledger.Outcome) {
	span.SetAttributes(attribute.Int("attempts", task.Attempt), attribute.Bool("unrelated", outcome.Unrelated))
	slog.Info("delivery succeeded", "task", task.ID, "conversation", task.Msg.Conversation, "attempts", task.Attempt, "unrelated", outcome.Unrelated)

	p.recordOutcome(ctx, task, true, outcome.ResultText, "")
	p.events.Broadcast(bus.Event{
		Name: bus.EventDeliveryCompleted,
		Payload: bus.DeliveryCompletedPayload{
			Conversation: task.Msg.Conversation,
			Fingerprint:  task.Msg.Fingerprint,
			Success:      true,
			Attempts:     task.Attempt,
			ResultText:   outcome.ResultText,
		},
	})

	// Unrelated messages get no reply; everything else echoes the result
	// back into the chat.
	if p.opts.ReplyEnabled && !outcome.Unrelated && outcome.ResultText != "" {
		p.replier.SendReply(ctx, task.Msg.Conversation, outcome.ResultText)
	}
}

// failRejected handles an explicit content rejection: surfaced immediately
// with the service's message, and the failure is reported back into the chat
// so the sender knows their entry was not recorded.
func (p *Pool) failRejected(ctx context.Context, span trace.Span, task Task, err error) {
	p.fail(ctx, span, task, FailureRejected, err)
	if p.opts.ReplyEnabled {
		p.replier.SendReply(ctx, task.Msg.Conversation, fmt.Sprintf("⚠️ 记账服务返回错误：%s", rejectionMessage(err)))
	}
}

// rejectionMessage strips the taxonomy prefix so the chat reply carries only
// the service's own message.
func rejectionMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, ledger.ErrRejected.Error()+": "); ok {
		return rest
	}
	return msg
}

func (p *Pool) fail(ctx context.Context, span trace.Span, task Task, kind string, err error) {
	span.SetStatus(codes.Error, kind)
	span.RecordError(err)
	span.SetAttributes(attribute.Int("attempts", task.Attempt))
	slog.Error("delivery failed", "task", task.ID, "conversation", task.Msg.Conversation, "kind", kind, "attempts", task.Attempt, "error", err)

	p.recordOutcome(ctx, task, false, "", kind)
	p.events.Broadcast(bus.Event{
		Name: bus.EventDeliveryCompleted,
		Payload: bus.DeliveryCompletedPayload{
			Conversation: task.Msg.Conversation,
			Fingerprint:  task.Msg.Fingerprint,
			Success:      false,
			Attempts:     task.Attempt,
			FailureKind:  kind,
		},
	})
}

func (p *Pool) recordOutcome(ctx context.Context, task Task, success bool, resultText, kind string) {
	err := p.store.RecordOutcome(ctx, history.OutcomeRecord{
		Conversation: task.Msg.Conversation,
		Fingerprint:  task.Msg.Fingerprint,
		Success:      success,
		Attempts:     task.Attempt,
		ResultText:   resultText,
		FailureKind:  kind,
	})
	if err != nil {
		slog.Warn("history outcome record failed", "task", task.ID, "error", err)
	}
}
