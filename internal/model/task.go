package model

import "time"

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// TaskStatus is where a task sits in its workflow. Any status may move to any other.
type TaskStatus string

const (
	StatusPending    TaskStatus = "Pending"
	StatusInProgress TaskStatus = "InProgress"
	StatusCompleted  TaskStatus = "Completed"
	StatusCancelled  TaskStatus = "Cancelled"
)

// Statuses lists every status in workflow order.
var Statuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

func (s TaskStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Field limits shared by validation and column sizes.
const (
	MaxTitleLen   = 200
	MaxSystemLen  = 50
	MaxCommentLen = 2000
)

// Task is a tracked work item. Only the assignee id is stored; the assigned
// user is always resolved by query.
type Task struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"not null" json:"description"`
	Priority    Priority   `gorm:"size:16;index;not null" json:"priority"`
	Status      TaskStatus `gorm:"size:16;index;not null" json:"status"`
	SystemName  string     `gorm:"size:50;not null" json:"system_name"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssigneeID  *string    `gorm:"type:varchar(36);index" json:"assignee_id,omitempty"`
	Comments    []Comment  `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
}

// AssignedTo reports whether the task is assigned to userID.
func (t *Task) AssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// Assignee returns the assignee id, or "" when the task is unassigned.
func (t *Task) Assignee() string {
	if t.AssigneeID == nil {
		return ""
	}
	return *t.AssigneeID
}
