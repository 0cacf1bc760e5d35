package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wxledgerhq/wxledger/internal/bus"
	"github.com/wxledgerhq/wxledger/internal/history"
	"github.com/wxledgerhq/wxledger/internal/wechat"
)

// AdmittedMessage is a record that survived the full filter chain and is
// eligible for delivery. Immutable; handed to the delivery pool by value.
type AdmittedMessage struct {
	Conversation string
	Sender       string
	Text         string
	Fingerprint  string
}

// Sink receives admitted messages. Implemented by the delivery pool.
type Sink interface {
	Submit(msg AdmittedMessage)
}

// watcher runs the poll loop for one conversation. It is the exclusive
// owner of the conversation's baseline; the shared dedup store does its own
// locking.
type watcher struct {
	conversation string
	driver       wechat.Driver
	baseline     *Baseline
	dedup        *DedupStore
	sink         Sink
	events       bus.EventPublisher
	store        history.Store

	interval      time.Duration
	errorCooldown time.Duration

	admitted   atomic.Int64
	lastPollAt atomic.Int64 // unix nanos
}

// run polls until ctx is cancelled. A fetch error skips the iteration and
// sleeps the longer error cooldown; it never terminates the loop.
func (w *watcher) run(ctx context.Context) {
	slog.Info("watcher started", "conversation", w.conversation, "interval", w.interval)
	for {
		wait := w.interval
		if err := w.poll(ctx); err != nil {
			slog.Warn("poll failed", "conversation", w.conversation, "error", err)
			wait = w.errorCooldown
		}

		select {
		case <-ctx.Done():
			slog.Info("watcher stopped", "conversation", w.conversation)
			return
		case <-time.After(wait):
		}
	}
}

func (w *watcher) poll(ctx context.Context) error {
	records, err := w.driver.ListMessages(ctx, w.conversation)
	if err != nil {
		return err
	}
	w.lastPollAt.Store(time.Now().UnixNano())

	for _, rec := range records {
		w.filter(ctx, rec)
	}
	return nil
}

// filter runs one record through the chain, cheapest and most certain
// rejection first: structural kind, self-echo markers, startup baseline,
// dedup admission.
func (w *watcher) filter(ctx context.Context, rec wechat.RawRecord) {
	kind, sender, text := wechat.Classify(rec)

	if kind != wechat.KindCounterpart {
		slog.Debug("skipping non-counterpart record", "conversation", w.conversation, "kind", kind)
		return
	}
	if text == "" {
		slog.Debug("skipping empty record", "conversation", w.conversation)
		return
	}
	if wechat.IsReplyEcho(text) {
		slog.Debug("skipping reply echo", "conversation", w.conversation, "text", snippet(text))
		return
	}

	fp := Fingerprint(kind, sender, text)
	if w.baseline.Contains(fp) {
		slog.Debug("skipping baselined record", "conversation", w.conversation, "fingerprint", fp)
		return
	}
	if !w.dedup.Admit(w.conversation, fp) {
		slog.Debug("skipping duplicate record", "conversation", w.conversation, "fingerprint", fp)
		return
	}

	if sender == "" {
		// No sender attribution from the window; fall back to the
		// conversation handle so the ledger entry is still attributable.
		sender = w.conversation
	}

	msg := AdmittedMessage{
		Conversation: w.conversation,
		Sender:       sender,
		Text:         text,
		Fingerprint:  fp,
	}
	w.admitted.Add(1)
	slog.Info("message admitted", "conversation", w.conversation, "sender", sender, "fingerprint", fp)

	if err := w.store.RecordAdmitted(ctx, history.AdmittedRecord{
		Conversation: msg.Conversation,
		Sender:       msg.Sender,
		Fingerprint:  msg.Fingerprint,
		Text:         msg.Text,
	}); err != nil {
		slog.Warn("history record failed", "conversation", w.conversation, "error", err)
	}

	w.events.Broadcast(bus.Event{
		Name: bus.EventMessageAdmitted,
		Payload: bus.MessageAdmittedPayload{
			Conversation: msg.Conversation,
			Sender:       msg.Sender,
			Text:         msg.Text,
			Fingerprint:  msg.Fingerprint,
		},
	})
	w.sink.Submit(msg)
}

func snippet(s string) string {
	const max = 50
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
