package model

import "time"

// Comment is an append-only note on a task.
type Comment struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TaskID    string    `gorm:"type:varchar(36);index;not null" json:"task_id"`
	AuthorID  string    `gorm:"type:varchar(36);index;not null" json:"author_id"`
	Content   string    `gorm:"size:2000;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
