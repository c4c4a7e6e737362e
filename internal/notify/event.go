// Package notify carries task events from the lifecycle engine to delivery
// sinks. Publishing never blocks on, or fails because of, delivery.
package notify

import (
	"context"
	"fmt"
	"time"

	"task-tracker/internal/model"
)

// Kind names an event type.
type Kind string

const (
	TaskAssigned      Kind = "TaskAssigned"
	TaskStatusChanged Kind = "TaskStatusChanged"
	TaskCommentAdded  Kind = "TaskCommentAdded"
	// TaskDueSoon and TaskOverdue are part of the contract but nothing in
	// the lifecycle engine raises them.
	TaskDueSoon Kind = "TaskDueSoon"
	TaskOverdue Kind = "TaskOverdue"
)

// TaskSnapshot is the task state captured when the event was raised.
type TaskSnapshot struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Status model.TaskStatus `json:"status"`
}

// SnapshotOf captures the fields of task carried by events.
func SnapshotOf(task *model.Task) TaskSnapshot {
	return TaskSnapshot{ID: task.ID, Title: task.Title, Status: task.Status}
}

// CommentPayload is attached to TaskCommentAdded events.
type CommentPayload struct {
	Content  string `json:"content"`
	AuthorID string `json:"author_id"`
}

// Event is a single notification request. UserIDs are direct recipients;
// Channel, when set, is a broadcast group such as "task:<id>".
type Event struct {
	Kind       Kind            `json:"kind"`
	UserIDs    []string        `json:"user_ids"`
	Channel    string          `json:"channel,omitempty"`
	Task       TaskSnapshot    `json:"task"`
	Comment    *CommentPayload `json:"comment,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// TaskChannel is the broadcast group for everyone watching a task.
func TaskChannel(taskID string) string {
	return "task:" + taskID
}

// Message renders a short human-readable line for the event.
func (e Event) Message() string {
	switch e.Kind {
	case TaskAssigned:
		return fmt.Sprintf("A new task '%s' was assigned to you", e.Task.Title)
	case TaskStatusChanged:
		return fmt.Sprintf("Task '%s' status changed to %s", e.Task.Title, e.Task.Status)
	case TaskCommentAdded:
		if e.Comment != nil {
			return fmt.Sprintf("New comment on '%s': %s", e.Task.Title, e.Comment.Content)
		}
		return fmt.Sprintf("New comment on '%s'", e.Task.Title)
	case TaskDueSoon:
		return fmt.Sprintf("Task '%s' is due soon", e.Task.Title)
	case TaskOverdue:
		return fmt.Sprintf("Task '%s' is overdue", e.Task.Title)
	default:
		return fmt.Sprintf("Task '%s' was updated", e.Task.Title)
	}
}

// Publisher accepts events without waiting for them to be delivered.
type Publisher interface {
	Publish(ev Event)
}

// Sink delivers an event to its recipients.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
