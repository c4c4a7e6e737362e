package notify

import (
	"context"
	"testing"
)

func receive(t *testing.T, sub *Subscription) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		return ev, ok
	default:
		return Event{}, false
	}
}

func TestHubRoutesByUserAndChannel(t *testing.T) {
	hub := NewHub(4)
	assignee := hub.Subscribe("u1")
	watcher := hub.Subscribe("u2", TaskChannel("t1"))
	bystander := hub.Subscribe("u3")
	defer assignee.Close()
	defer watcher.Close()
	defer bystander.Close()

	ev := Event{Kind: TaskCommentAdded, UserIDs: []string{"u1"}, Channel: TaskChannel("t1"), Task: TaskSnapshot{ID: "t1"}}
	if err := hub.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if got, ok := receive(t, assignee); !ok || got.Kind != TaskCommentAdded {
		t.Error("assignee should receive the event")
	}
	if _, ok := receive(t, watcher); !ok {
		t.Error("channel member should receive the event")
	}
	if _, ok := receive(t, bystander); ok {
		t.Error("unrelated subscriber should not receive the event")
	}
}

func TestHubDeliversOncePerSubscriber(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe("u1", TaskChannel("t1"))
	defer sub.Close()

	ev := Event{Kind: TaskCommentAdded, UserIDs: []string{"u1"}, Channel: TaskChannel("t1")}
	hub.Deliver(context.Background(), ev)

	if _, ok := receive(t, sub); !ok {
		t.Fatal("expected one event")
	}
	if _, ok := receive(t, sub); ok {
		t.Fatal("event delivered twice")
	}
}

func TestHubJoinLeaveAndClose(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("u9")
	sub.Join(TaskChannel("t7"))

	ev := Event{Kind: TaskCommentAdded, Channel: TaskChannel("t7")}
	hub.Deliver(context.Background(), ev)
	if _, ok := receive(t, sub); !ok {
		t.Fatal("joined channel should deliver")
	}

	sub.Leave(TaskChannel("t7"))
	hub.Deliver(context.Background(), ev)
	if _, ok := receive(t, sub); ok {
		t.Fatal("left channel should not deliver")
	}

	// A full buffer drops rather than blocks.
	direct := Event{Kind: TaskAssigned, UserIDs: []string{"u9"}}
	hub.Deliver(context.Background(), direct)
	hub.Deliver(context.Background(), direct)

	sub.Close()
	sub.Close()
	if hub.Subscribers() != 0 {
		t.Errorf("Subscribers = %d, want 0", hub.Subscribers())
	}
	if _, ok := <-sub.Events(); !ok {
		t.Error("buffered event should still be readable after close")
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("events channel should be closed")
	}
}

func TestHubLookupIsOwnerOnly(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("u1")

	if got, ok := hub.Lookup(sub.ID(), "u1"); !ok || got != sub {
		t.Fatalf("Lookup by owner = %v, %v", got, ok)
	}
	if _, ok := hub.Lookup(sub.ID(), "u2"); ok {
		t.Error("Lookup by another user should fail")
	}
	sub.Close()
	if _, ok := hub.Lookup(sub.ID(), "u1"); ok {
		t.Error("Lookup after Close should fail")
	}
}
