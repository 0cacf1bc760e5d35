package bus

// Event names for the four observable notifications the pipeline emits.
// These are one-way: the surrounding application (CLI log sink, future UI)
// subscribes but has no inbound control surface here.
const (
	EventMessageAdmitted     = "message.admitted"
	EventDeliveryCompleted   = "delivery.completed"
	EventReplySent           = "reply.sent"
	EventCredentialRefreshed = "credential.refreshed"
)

// Event is a broadcast notification.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// MessageAdmittedPayload announces a record that survived all filters.
type MessageAdmittedPayload struct {
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	Text         string `json:"text"`
	Fingerprint  string `json:"fingerprint"`
}

// DeliveryCompletedPayload announces a terminal delivery outcome.
type DeliveryCompletedPayload struct {
	Conversation string `json:"conversation"`
	Fingerprint  string `json:"fingerprint"`
	Success      bool   `json:"success"`
	Attempts     int    `json:"attempts"`
	ResultText   string `json:"result_text,omitempty"`
	FailureKind  string `json:"failure_kind,omitempty"` // "transient-exhausted", "rejected", "auth"
}

// ReplySentPayload announces a reply send attempt's outcome.
type ReplySentPayload struct {
	Conversation string `json:"conversation"`
	Success      bool   `json:"success"`
}

// CredentialRefreshedPayload announces a credential refresh outcome.
type CredentialRefreshedPayload struct {
	Success bool   `json:"success"`
	Subject string `json:"subject,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription so components can
// emit without depending on the concrete bus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}
