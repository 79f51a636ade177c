package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch := b.Subscribe(4)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Source: SourceAgent, Kind: KindRequestStart, Data: map[string]any{"session_id": "s1"}})

	select {
	case e := <-ch:
		if e.Source != SourceAgent || e.Kind != KindRequestStart {
			t.Errorf("got event %+v", e)
		}
		if e.Timestamp.IsZero() {
			t.Error("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_nilBus(t *testing.T) {
	var b *Bus
	b.Publish(Event{Source: SourceScheduler, Kind: KindDueScan})
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount on nil = %d", n)
	}
}

func TestPublish_slowSubscriberDropsEvents(t *testing.T) {
	b := New()
	ch := b.Subscribe(1)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Kind: "first"})
	b.Publish(Event{Kind: "second"}) // dropped, buffer full

	e := <-ch
	if e.Kind != "first" {
		t.Errorf("got %q, want first", e.Kind)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected second event %+v", e)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch := b.Subscribe(1)
	b.Unsubscribe(ch)
	b.Unsubscribe(ch) // double unsubscribe is a no-op

	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}
	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}
}
