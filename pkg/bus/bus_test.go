package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusBasicPublishSubscribe(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	b.Subscribe(EventError, ch)

	b.Publish(Event{Type: EventError, SessionID: "s1", Payload: "test error"})

	select {
	case received := <-ch:
		assert.Equal(t, EventError, received.Type)
		assert.Equal(t, "s1", received.SessionID)
		assert.Equal(t, "test error", received.Payload)
		assert.False(t, received.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	b.Subscribe(EventOverflow, ch)
	b.Unsubscribe(EventOverflow, ch)

	b.Publish(Event{Type: EventOverflow})

	select {
	case <-ch:
		t.Error("should not receive event after unsubscribe")
	default:
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	b := New()
	ch1 := make(chan Event, 1)
	ch2 := make(chan Event, 1)
	b.Subscribe(EventPartialResult, ch1)
	b.Subscribe(EventPartialResult, ch2)

	b.Publish(Event{Type: EventPartialResult, Payload: "partial"})

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			assert.Equal(t, "partial", received.Payload)
		default:
			t.Fatal("subscriber missed event")
		}
	}
}

func TestEventBusOnlyMatchingType(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	b.Subscribe(EventStatusChanged, ch)

	b.Publish(Event{Type: EventFileComplete})
	assert.Len(t, ch, 0)
}

func TestEventBusFullSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	ch := make(chan Event) // unbuffered, nobody reading
	b.Subscribe(EventSinkError, ch)

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: EventSinkError})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "publish blocked on a full subscriber")
	}
}
