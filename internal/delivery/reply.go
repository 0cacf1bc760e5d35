package delivery

import (
	"context"
	"log/slog"

	"github.com/wxledgerhq/wxledger/internal/bus"
	"github.com/wxledgerhq/wxledger/internal/wechat"
)

// Replier sends reply text back into a conversation through the automation
// driver. Success is determined solely by the absence of a fault from the
// send call — the driver's own return value is unreliable and is never
// interpreted (the bridge client logs it at debug). A failed reply is
// surfaced once and never retried automatically; retrying could double-post
// into the chat.
type Replier struct {
	driver wechat.Driver
	events bus.EventPublisher
}

// NewReplier creates a Replier.
func NewReplier(driver wechat.Driver, events bus.EventPublisher) *Replier {
	return &Replier{driver: driver, events: events}
}

// SendReply sends text into the conversation and reports whether the send
// raised a fault.
func (r *Replier) SendReply(ctx context.Context, conversation, text string) bool {
	err := r.driver.SendMessage(ctx, conversation, text)
	success := err == nil
	if success {
		slog.Info("reply sent", "conversation", conversation)
	} else {
		slog.Error("reply send failed", "conversation", conversation, "error", err)
	}

	r.events.Broadcast(bus.Event{
		Name:    bus.EventReplySent,
		Payload: bus.ReplySentPayload{Conversation: conversation, Success: success},
	})
	return success
}
