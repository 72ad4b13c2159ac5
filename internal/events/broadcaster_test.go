package events

import (
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	s1 := b.Subscribe("a")
	s2 := b.Subscribe("b")
	if b.Count() != 2 {
		t.Fatalf("Count = %d, want 2", b.Count())
	}
	b.Unsubscribe(s1)
	b.Unsubscribe(s1)
	if b.Count() != 1 {
		t.Fatalf("Count = %d, want 1", b.Count())
	}
	select {
	case <-s1.Done():
	default:
		t.Fatalf("expected done to be closed")
	}
	b.Unsubscribe(s2)
	if b.Count() != 0 {
		t.Fatalf("Count = %d, want 0", b.Count())
	}
}

func TestUnsubscribeSession(t *testing.T) {
	b := NewBroadcaster()
	a1 := b.Subscribe("a")
	a2 := b.Subscribe("a")
	other := b.Subscribe("b")
	defer b.Unsubscribe(other)

	if n := b.UnsubscribeSession("a"); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	for _, s := range []*Subscriber{a1, a2} {
		select {
		case <-s.Done():
		default:
			t.Fatalf("expected done to be closed")
		}
	}
	b.Unsubscribe(a1)
	if b.Count() != 1 {
		t.Fatalf("Count = %d, want 1", b.Count())
	}
}

func TestPublish_RoutesBySession(t *testing.T) {
	b := NewBroadcaster()
	a := b.Subscribe("a")
	other := b.Subscribe("b")
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(other)

	b.Publish(Event{Session: "a", Type: TypeSelection})
	select {
	case ev := <-a.C:
		if ev.Type != TypeSelection || ev.At.IsZero() {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
	}
	select {
	case ev := <-other.C:
		t.Fatalf("other session received %+v", ev)
	default:
	}

	b.Publish(Event{Type: TypeProcessor, Payload: "ready"})
	for _, s := range []*Subscriber{a, other} {
		select {
		case ev := <-s.C:
			if ev.Type != TypeProcessor {
				t.Fatalf("unexpected event: %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("processor event not broadcast")
		}
	}
}

func TestPublish_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe("a")
	defer b.Unsubscribe(s)

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(s.C)*3; i++ {
			b.Publish(Event{Session: "a", Type: TypeStyle})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
	if len(s.C) != cap(s.C) {
		t.Fatalf("buffer = %d, want full (%d)", len(s.C), cap(s.C))
	}
}
