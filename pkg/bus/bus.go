// Package bus is a small in-process publish/subscribe hub used to report
// session lifecycle and recognition events without coupling producers to
// their observers.
package bus

import (
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	// EventStatusChanged carries a StatusPayload.
	EventStatusChanged EventType = "status_changed"
	// EventOverflow carries an OverflowPayload.
	EventOverflow EventType = "overflow"
	// EventSinkError carries a SinkErrorPayload.
	EventSinkError EventType = "sink_error"
	// EventFileComplete carries the path of the finished file as a string.
	EventFileComplete EventType = "file_complete"
	// EventPartialResult and EventFinalResult carry an *asr.RecognitionResult.
	EventPartialResult EventType = "partial_result"
	EventFinalResult   EventType = "final_result"
	// EventError carries an error.
	EventError EventType = "error"
)

// Event is a single notification.
type Event struct {
	Type      EventType
	SessionID string
	Timestamp time.Time
	Payload   interface{}
}

// StatusPayload describes a status transition.
type StatusPayload struct {
	From string
	To   string
}

// OverflowPayload reports bytes the producer overwrote before they were read.
type OverflowPayload struct {
	Dropped      uint64
	TotalDropped uint64
}

// SinkErrorPayload reports a consumer failure.
type SinkErrorPayload struct {
	Sink string
	Err  error
}

// Bus publishes events to subscribed channels.
type Bus interface {
	Subscribe(eventType EventType, ch chan<- Event)
	Unsubscribe(eventType EventType, ch chan<- Event)
	Publish(evt Event)
}

type eventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan<- Event
}

// New returns an empty bus.
func New() Bus {
	return &eventBus{
		subscribers: make(map[EventType][]chan<- Event),
	}
}

func (b *eventBus) Subscribe(eventType EventType, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
}

func (b *eventBus) Unsubscribe(eventType EventType, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[eventType]) == 0 {
		delete(b.subscribers, eventType)
	}
}

// Publish never blocks: a subscriber whose channel is full misses the event.
func (b *eventBus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[evt.Type] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Subscribe(EventType, chan<- Event)   {}
func (Nop) Unsubscribe(EventType, chan<- Event) {}
func (Nop) Publish(Event)                       {}
