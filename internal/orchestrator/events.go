package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType labels an orchestrator event.
type EventType string

const (
	EventInitialized       EventType = "initialized"
	EventDispatchStarted   EventType = "dispatch_started"
	EventHandoff           EventType = "handoff"
	EventDispatchCompleted EventType = "dispatch_completed"
	EventUploaded          EventType = "uploaded"
)

// Event is a session lifecycle notification fanned out to subscribers
// (e.g. the websocket event stream).
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Agent     string    `json:"agent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// eventBus fans events out to subscribers. Slow subscribers drop events
// rather than stall a dispatch.
type eventBus struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[string]chan Event)}
}

// Subscribe registers a buffered event channel and returns it with an
// unsubscribe func. The channel is closed on unsubscribe.
func (b *eventBus) Subscribe() (<-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, 64)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
}

func (b *eventBus) publish(eventType EventType, agent, detail string) {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Agent:     agent,
		Detail:    detail,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; drop rather than block.
		}
	}
}
