package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-tracker/internal/model"
)

// TaskRepository handles CRUD for tasks and their comments.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create stores a new task, filling in the id and creation time when unset.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error; err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("create task: %w: id %s already exists", model.ErrConflict, task.ID)
		}
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID loads a task with its comments, newest comment first.
func (r *TaskRepository) FindByID(ctx context.Context, taskID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", taskID).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// Update replaces the mutable fields of an existing task. The stored
// creation time always wins over the one on task.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Task
		if err := tx.Select("id", "created_at").Where("id = ?", task.ID).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("task %s: %w", task.ID, model.ErrNotFound)
			}
			return fmt.Errorf("find task: %w", err)
		}
		task.CreatedAt = existing.CreatedAt
		if err := tx.Omit(clause.Associations).Save(task).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
}

// Delete removes a task and its comments. It reports false when no task had taskID.
func (r *TaskRepository) Delete(ctx context.Context, taskID string) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", taskID).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		return nil
	})
	return removed, err
}

func (r *TaskRepository) ListAll(ctx context.Context) ([]model.Task, error) {
	return r.list(r.db.WithContext(ctx))
}

func (r *TaskRepository) ListByAssignee(ctx context.Context, userID string) ([]model.Task, error) {
	return r.list(r.db.WithContext(ctx).Where("assignee_id = ?", userID))
}

func (r *TaskRepository) ListByStatus(ctx context.Context, status model.TaskStatus) ([]model.Task, error) {
	return r.list(r.db.WithContext(ctx).Where("status = ?", status))
}

func (r *TaskRepository) ListByPriority(ctx context.Context, priority model.Priority) ([]model.Task, error) {
	return r.list(r.db.WithContext(ctx).Where("priority = ?", priority))
}

// list returns the matching tasks, most recently created first.
func (r *TaskRepository) list(q *gorm.DB) ([]model.Task, error) {
	var tasks []model.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return int(n), nil
}

func (r *TaskRepository) CountByStatus(ctx context.Context, status model.TaskStatus) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return int(n), nil
}

// CreateComment appends a comment, filling in the id and creation time when unset.
func (r *TaskRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ListComments returns a task's comments, newest first.
func (r *TaskRepository) ListComments(ctx context.Context, taskID string) ([]model.Comment, error) {
	var comments []model.Comment
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at DESC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
