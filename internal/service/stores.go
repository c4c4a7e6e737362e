package service

import (
	"context"
	"time"

	"task-tracker/internal/model"
)

// TaskStore is the durable task and comment storage the lifecycle engine
// runs against. Lists are ordered newest first. Missing records are
// reported as model.ErrNotFound.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, taskID string) (*model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, taskID string) (bool, error)
	ListAll(ctx context.Context) ([]model.Task, error)
	ListByAssignee(ctx context.Context, userID string) ([]model.Task, error)
	ListByStatus(ctx context.Context, status model.TaskStatus) ([]model.Task, error)
	ListByPriority(ctx context.Context, priority model.Priority) ([]model.Task, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status model.TaskStatus) (int, error)
	CreateComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, taskID string) ([]model.Comment, error)
}

// UserStore is the durable user storage. ListAll is ordered by username;
// lookups by username and email ignore case.
type UserStore interface {
	Create(ctx context.Context, user *model.User, password string) error
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, userID string) (bool, error)
	FindByID(ctx context.Context, userID string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByTelegramChat(ctx context.Context, chatID int64) (*model.User, error)
	ListAll(ctx context.Context) ([]model.User, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
	ListLinked(ctx context.Context) ([]model.User, error)
	Authenticate(ctx context.Context, login, password string) (*model.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) (bool, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	LinkTelegram(ctx context.Context, userID string, chatID int64) error
}
