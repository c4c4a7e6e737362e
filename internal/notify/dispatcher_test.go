package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingSink keeps delivered events and can be told to fail or block.
type recordingSink struct {
	mu      sync.Mutex
	events  []Event
	failErr error
	panicOn Kind
	gate    chan struct{}
}

func (s *recordingSink) Deliver(_ context.Context, ev Event) error {
	if s.gate != nil {
		<-s.gate
	}
	if ev.Kind == s.panicOn {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.failErr
}

func (s *recordingSink) kinds() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Kind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

func closeDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 8)
	d.Start()

	d.Publish(Event{Kind: TaskAssigned})
	d.Publish(Event{Kind: TaskStatusChanged})
	d.Publish(Event{Kind: TaskCommentAdded})
	closeDispatcher(t, d)

	got := sink.kinds()
	want := []Kind{TaskAssigned, TaskStatusChanged, TaskCommentAdded}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDispatcherSwallowsSinkFailures(t *testing.T) {
	sink := &recordingSink{failErr: errors.New("smtp down"), panicOn: TaskOverdue}
	d := NewDispatcher(sink, 8)
	d.Start()

	d.Publish(Event{Kind: TaskAssigned})
	d.Publish(Event{Kind: TaskOverdue})
	d.Publish(Event{Kind: TaskStatusChanged})
	closeDispatcher(t, d)

	if got := d.Failed(); got != 3 {
		t.Errorf("Failed = %d, want 3", got)
	}
	if got := len(sink.kinds()); got != 2 {
		t.Errorf("delivered %d events, want 2 (the panicking one is lost)", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	d := NewDispatcher(sink, 1)
	d.Start()

	// The worker takes the first event and blocks on the gate; the second
	// fills the queue; the third has nowhere to go.
	d.Publish(Event{Kind: TaskAssigned})
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Publish(Event{Kind: TaskStatusChanged})
	d.Publish(Event{Kind: TaskCommentAdded})

	if got := d.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
	close(sink.gate)
	closeDispatcher(t, d)

	if got := len(sink.kinds()); got != 2 {
		t.Errorf("delivered %d events, want 2", got)
	}
}

func TestDispatcherPublishAfterClose(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, 4)
	d.Start()
	closeDispatcher(t, d)

	d.Publish(Event{Kind: TaskAssigned})
	if got := d.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
	// A second close is harmless.
	closeDispatcher(t, d)
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{failErr: errors.New("offline")}
	err := MultiSink{bad, ok}.Deliver(context.Background(), Event{Kind: TaskAssigned})
	if err == nil {
		t.Fatal("expected the failing sink's error")
	}
	if len(ok.kinds()) != 1 {
		t.Error("healthy sink should still receive the event")
	}
}

func TestEventMessage(t *testing.T) {
	task := TaskSnapshot{ID: "t1", Title: "Deploy", Status: "Completed"}
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Kind: TaskAssigned, Task: task}, "A new task 'Deploy' was assigned to you"},
		{Event{Kind: TaskStatusChanged, Task: task}, "Task 'Deploy' status changed to Completed"},
		{Event{Kind: TaskCommentAdded, Task: task, Comment: &CommentPayload{Content: "done?"}}, "New comment on 'Deploy': done?"},
		{Event{Kind: TaskDueSoon, Task: task}, "Task 'Deploy' is due soon"},
		{Event{Kind: TaskOverdue, Task: task}, "Task 'Deploy' is overdue"},
	}
	for _, tt := range tests {
		if got := tt.ev.Message(); got != tt.want {
			t.Errorf("%s: Message() = %q, want %q", tt.ev.Kind, got, tt.want)
		}
	}
	if TaskChannel("t1") != "task:t1" {
		t.Errorf("TaskChannel = %q", TaskChannel("t1"))
	}
}
