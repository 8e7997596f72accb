// Package events provides the in-process event bus decoupling node
// mutations from their side effects (embedding regeneration, triggered
// actions, audit). Handlers run out-of-band; publishers never wait on
// them.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/maruel/ksid"

	"github.com/arkivo/arkivo/internal/node"
)

// Event types emitted by the node service.
const (
	// NodeCreated is published after a node is durably persisted.
	NodeCreated = "node.created"
	// NodeUpdated is published after an update commits; the payload
	// carries per-field old/new diffs.
	NodeUpdated = "node.updated"
	// NodeDeleted is published per node actually removed.
	NodeDeleted = "node.deleted"
)

// Event is a published bus message.
type Event struct {
	ID      ksid.ID   `json:"id"`
	Type    string    `json:"type"`
	Tenant  string    `json:"tenant,omitempty"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// FieldChange is one entry of an update diff.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// CreatedPayload accompanies NodeCreated events.
type CreatedPayload struct {
	Node *node.Node `json:"node"`
}

// UpdatedPayload accompanies NodeUpdated events.
type UpdatedPayload struct {
	UUID    string        `json:"uuid"`
	Changes []FieldChange `json:"changes"`
}

// DeletedPayload accompanies NodeDeleted events.
type DeletedPayload struct {
	Node *node.Node `json:"node"`
}

// Handler consumes published events. Handlers own their retry and
// idempotence; a panicking handler is recovered and logged.
type Handler func(Event)

// Bus is a minimal publish/subscribe fan-out.
type Bus struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string][]Handler
}

// NewBus creates an event bus. A nil logger discards output.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{logger: logger, subs: map[string][]Handler{}}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], h)
}

// Publish assigns the event an id and timestamp and dispatches it to the
// subscribed handlers, each on its own goroutine. Publish returns
// immediately.
func (b *Bus) Publish(evt Event) {
	evt.ID = ksid.NewID()
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[evt.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "type", evt.Type, "panic", r)
				}
			}()
			h(evt)
		}(h)
	}
}
