// Package bus is the in-process event bus connecting the pipeline to the
// surrounding application. Components broadcast; subscribers observe.
package bus

import "sync"

// EventBus is a minimal fan-out publisher. Handlers run synchronously on the
// broadcaster's goroutine, so subscribers must not block; anything slow
// belongs on the subscriber's own goroutine.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
}

// New creates an empty EventBus.
func New() *EventBus {
	return &EventBus{handlers: make(map[string]EventHandler)}
}

// Subscribe registers a handler under id, replacing any previous handler
// with the same id.
func (b *EventBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = handler
}

// Unsubscribe removes the handler registered under id.
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

// Broadcast delivers event to every subscriber.
func (b *EventBus) Broadcast(event Event) {
	b.mu.RLock()
	hs := make([]EventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(event)
	}
}
