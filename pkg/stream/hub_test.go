package stream

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(4)
	defer h.Unsubscribe(ch)

	h.Publish(NewEvent(TypeLeadTransition, map[string]string{"lead_id": "l1", "status": "Won"}))

	select {
	case evt := <-ch:
		if evt.Type != TypeLeadTransition {
			t.Fatalf("unexpected type %q", evt.Type)
		}
		if evt.At == "" || len(evt.Data) == 0 {
			t.Fatalf("event missing fields: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(1)
	defer h.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(NewEvent(TypeLeadCreated, nil))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publisher blocked on slow subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(1)
	h.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if h.SubscriberCount() != 0 {
		t.Fatalf("subscriber not removed")
	}
	// double unsubscribe is a no-op
	h.Unsubscribe(ch)
}
