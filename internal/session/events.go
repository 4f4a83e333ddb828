package session

import (
	"sync"

	"github.com/screentech/pressassist/internal/domain"
)

// EventType labels a transcript state change.
type EventType string

const (
	// EventConnected fires when a press profile becomes active.
	EventConnected EventType = "connected"
	// EventDisconnected fires when the active press is released.
	EventDisconnected EventType = "disconnected"
	// EventMessageAdded fires when a message is appended to the transcript.
	EventMessageAdded EventType = "message_added"
	// EventMessageDelta fires for each streamed reply fragment.
	EventMessageDelta EventType = "message_delta"
	// EventMessageUpdated fires when a message is finalized or verified.
	EventMessageUpdated EventType = "message_updated"
	// EventTranscriptReset fires after a destructive history clear.
	EventTranscriptReset EventType = "transcript_reset"
)

// Event is one transcript state change pushed to subscribers. The stream
// decouples the provider's transport from the state-update contract: a single
// consumer applies deltas in order, text grows monotonically, and the pending
// flag clears exactly once.
type Event struct {
	Type      EventType       `json:"type"`
	Serial    string          `json:"serial,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	Delta     string          `json:"delta,omitempty"`
	Message   *domain.Message `json:"message,omitempty"`
}

// Hub fans transcript events out to subscribers (websocket connections).
// Publish never blocks: a subscriber that cannot keep up loses events and is
// expected to refetch the transcript.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int64]chan Event
	nextID int64
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]chan Event)}
}

// Subscribe registers a listener with the given buffer size.
func (h *Hub) Subscribe(buffer int) (int64, <-chan Event) {
	if buffer <= 0 {
		buffer = 64
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	ch := make(chan Event, buffer)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (h *Hub) Unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish delivers an event to every subscriber, dropping it for slow ones.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
