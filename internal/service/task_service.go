package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"task-tracker/internal/model"
	"task-tracker/internal/notify"
	"task-tracker/internal/policy"
)

// TaskInput carries the caller-editable fields of a task. Id and creation
// time are always set by the service.
type TaskInput struct {
	Title       string
	Description string
	Priority    model.Priority
	Status      model.TaskStatus
	SystemName  string
	DueDate     *time.Time
	AssigneeID  *string
}

// TaskService wraps task-related business logic: role scoping, validation,
// and the events raised after each successful change.
type TaskService struct {
	taskRepo TaskStore
	userRepo UserStore
	events   notify.Publisher
	now      func() time.Time
}

func NewTaskService(taskRepo TaskStore, userRepo UserStore, events notify.Publisher) *TaskService {
	if events == nil {
		events = notify.Discard
	}
	return &TaskService{
		taskRepo: taskRepo,
		userRepo: userRepo,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for creation timestamps.
func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	s.now = now
	return s
}

// List returns the tasks visible to the caller, most recent first.
func (s *TaskService) List(ctx context.Context, caller policy.Caller) ([]model.Task, error) {
	if caller.Scope() == policy.ScopeAll {
		return s.taskRepo.ListAll(ctx)
	}
	return s.taskRepo.ListByAssignee(ctx, caller.UserID)
}

func (s *TaskService) ListByStatus(ctx context.Context, caller policy.Caller, status model.TaskStatus) ([]model.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, status)
	}
	if caller.Scope() == policy.ScopeAll {
		return s.taskRepo.ListByStatus(ctx, status)
	}
	return s.filterOwned(ctx, caller, func(t *model.Task) bool { return t.Status == status })
}

func (s *TaskService) ListByPriority(ctx context.Context, caller policy.Caller, priority model.Priority) ([]model.Task, error) {
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", model.ErrValidation, priority)
	}
	if caller.Scope() == policy.ScopeAll {
		return s.taskRepo.ListByPriority(ctx, priority)
	}
	return s.filterOwned(ctx, caller, func(t *model.Task) bool { return t.Priority == priority })
}

// Recent returns at most n of the caller's most recently created tasks.
func (s *TaskService) Recent(ctx context.Context, caller policy.Caller, n int) ([]model.Task, error) {
	tasks, err := s.List(ctx, caller)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(tasks) > n {
		tasks = tasks[:n]
	}
	return tasks, nil
}

// Overdue returns visible open tasks whose due date has passed.
func (s *TaskService) Overdue(ctx context.Context, caller policy.Caller, now time.Time) ([]model.Task, error) {
	return s.filterVisible(ctx, caller, func(t *model.Task) bool {
		return isOpen(t) && t.DueDate != nil && t.DueDate.Before(now)
	})
}

// DueSoon returns visible open tasks due within the next days.
func (s *TaskService) DueSoon(ctx context.Context, caller policy.Caller, now time.Time, days int) ([]model.Task, error) {
	horizon := now.AddDate(0, 0, days)
	return s.filterVisible(ctx, caller, func(t *model.Task) bool {
		return isOpen(t) && t.DueDate != nil && !t.DueDate.Before(now) && !t.DueDate.After(horizon)
	})
}

func isOpen(t *model.Task) bool {
	return t.Status != model.StatusCompleted && t.Status != model.StatusCancelled
}

func (s *TaskService) filterOwned(ctx context.Context, caller policy.Caller, keep func(*model.Task) bool) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListByAssignee(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return filterTasks(tasks, keep), nil
}

func (s *TaskService) filterVisible(ctx context.Context, caller policy.Caller, keep func(*model.Task) bool) ([]model.Task, error) {
	tasks, err := s.List(ctx, caller)
	if err != nil {
		return nil, err
	}
	return filterTasks(tasks, keep), nil
}

func filterTasks(tasks []model.Task, keep func(*model.Task) bool) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for i := range tasks {
		if keep(&tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out
}

// Get loads a task with its comments. A task outside the caller's scope is
// reported exactly like a missing one.
func (s *TaskService) Get(ctx context.Context, caller policy.Caller, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !caller.CanSee(task) {
		return nil, notFound(taskID)
	}
	return task, nil
}

func notFound(taskID string) error {
	return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
}

func requireMutate(caller policy.Caller) error {
	if !policy.CanMutateTasks(caller.Role) {
		return fmt.Errorf("%w: role %q cannot modify tasks", model.ErrUnauthorized, caller.Role)
	}
	return nil
}

// Create validates and stores a new task, then notifies the assignee unless
// the caller assigned the task to themselves.
func (s *TaskService) Create(ctx context.Context, caller policy.Caller, input TaskInput) (*model.Task, error) {
	if err := requireMutate(caller); err != nil {
		return nil, err
	}
	if err := normalizeInput(&input); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, input.AssigneeID); err != nil {
		return nil, err
	}

	task := model.Task{
		ID:          uuid.NewString(),
		CreatedAt:   s.now(),
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      input.Status,
		SystemName:  input.SystemName,
		DueDate:     input.DueDate,
		AssigneeID:  input.AssigneeID,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	log.Printf("[info] task created id=%s by=%s assignee=%s", task.ID, caller.UserID, task.Assignee())

	if task.AssigneeID != nil && *task.AssigneeID != caller.UserID {
		s.emit(notify.TaskAssigned, &task, []string{*task.AssigneeID}, "", nil)
	}
	return &task, nil
}

// Update replaces every mutable field of an existing task. The creation
// time is kept from the stored record. A change of assignee notifies the
// new assignee.
func (s *TaskService) Update(ctx context.Context, caller policy.Caller, taskID string, input TaskInput) (*model.Task, error) {
	if err := requireMutate(caller); err != nil {
		return nil, err
	}
	if err := normalizeInput(&input); err != nil {
		return nil, err
	}
	existing, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, input.AssigneeID); err != nil {
		return nil, err
	}

	previous := existing.Assignee()
	existing.Title = input.Title
	existing.Description = input.Description
	existing.Priority = input.Priority
	existing.Status = input.Status
	existing.SystemName = input.SystemName
	existing.DueDate = input.DueDate
	existing.AssigneeID = input.AssigneeID
	if err := s.taskRepo.Update(ctx, existing); err != nil {
		return nil, err
	}
	log.Printf("[info] task updated id=%s by=%s", existing.ID, caller.UserID)

	if next := existing.Assignee(); next != "" && next != previous && next != caller.UserID {
		s.emit(notify.TaskAssigned, existing, []string{next}, "", nil)
	}
	return existing, nil
}

// ChangeStatus moves a task to any status and notifies its assignee.
func (s *TaskService) ChangeStatus(ctx context.Context, caller policy.Caller, taskID string, status model.TaskStatus) (*model.Task, error) {
	if err := requireMutate(caller); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, status)
	}
	task, err := s.mutate(ctx, taskID, func(t *model.Task) { t.Status = status })
	if err != nil {
		return nil, err
	}
	log.Printf("[info] task status changed id=%s status=%s by=%s", task.ID, task.Status, caller.UserID)

	if task.AssigneeID != nil {
		s.emit(notify.TaskStatusChanged, task, []string{*task.AssigneeID}, "", nil)
	}
	return task, nil
}

func (s *TaskService) UpdatePriority(ctx context.Context, caller policy.Caller, taskID string, priority model.Priority) (*model.Task, error) {
	if err := requireMutate(caller); err != nil {
		return nil, err
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", model.ErrValidation, priority)
	}
	return s.mutate(ctx, taskID, func(t *model.Task) { t.Priority = priority })
}

// UpdateDueDate sets or, with nil, clears the due date.
func (s *TaskService) UpdateDueDate(ctx context.Context, caller policy.Caller, taskID string, due *time.Time) (*model.Task, error) {
	if err := requireMutate(caller); err != nil {
		return nil, err
	}
	return s.mutate(ctx, taskID, func(t *model.Task) { t.DueDate = due })
}

// AssignTask hands a task to an existing user and notifies them unless
// they assigned it to themselves.
func (s *TaskService) AssignTask(ctx context.Context, caller policy.Caller, taskID, userID string) (*model.Task, error) {
	if err := requireMutate(caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: assignee is required", model.ErrValidation)
	}
	if err := s.checkAssignee(ctx, &userID); err != nil {
		return nil, err
	}
	task, err := s.mutate(ctx, taskID, func(t *model.Task) { t.AssigneeID = &userID })
	if err != nil {
		return nil, err
	}
	log.Printf("[info] task assigned id=%s assignee=%s by=%s", task.ID, userID, caller.UserID)

	if userID != caller.UserID {
		s.emit(notify.TaskAssigned, task, []string{userID}, "", nil)
	}
	return task, nil
}

// Unassign clears the assignee of a task.
func (s *TaskService) Unassign(ctx context.Context, caller policy.Caller, taskID string) (*model.Task, error) {
	if err := requireMutate(caller); err != nil {
		return nil, err
	}
	return s.mutate(ctx, taskID, func(t *model.Task) { t.AssigneeID = nil })
}

func (s *TaskService) mutate(ctx context.Context, taskID string, apply func(*model.Task)) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	apply(task)
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// AddComment appends a comment to a task the caller can see. The assignee,
// when it is not the author, and everyone watching the task are notified.
func (s *TaskService) AddComment(ctx context.Context, caller policy.Caller, taskID, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment is empty", model.ErrValidation)
	}
	if utf8.RuneCountInString(content) > model.MaxCommentLen {
		return nil, fmt.Errorf("%w: comment exceeds %d characters", model.ErrValidation, model.MaxCommentLen)
	}
	task, err := s.Get(ctx, caller, taskID)
	if err != nil {
		return nil, err
	}

	comment := model.Comment{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		AuthorID:  caller.UserID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.taskRepo.CreateComment(ctx, &comment); err != nil {
		return nil, err
	}

	if task.AssigneeID != nil && *task.AssigneeID != caller.UserID {
		s.emit(notify.TaskCommentAdded, task, []string{*task.AssigneeID}, notify.TaskChannel(task.ID),
			&notify.CommentPayload{Content: comment.Content, AuthorID: comment.AuthorID})
	}
	return &comment, nil
}

// ListComments returns the comments of a visible task, newest first.
func (s *TaskService) ListComments(ctx context.Context, caller policy.Caller, taskID string) ([]model.Comment, error) {
	if _, err := s.Get(ctx, caller, taskID); err != nil {
		return nil, err
	}
	return s.taskRepo.ListComments(ctx, taskID)
}

// Delete removes a task for good. It reports false, without error, when
// the task does not exist.
func (s *TaskService) Delete(ctx context.Context, caller policy.Caller, taskID string) (bool, error) {
	if err := requireMutate(caller); err != nil {
		return false, err
	}
	removed, err := s.taskRepo.Delete(ctx, taskID)
	if err != nil {
		return false, err
	}
	if removed {
		log.Printf("[info] task deleted id=%s by=%s", taskID, caller.UserID)
	}
	return removed, nil
}

func (s *TaskService) checkAssignee(ctx context.Context, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}
	if _, err := s.userRepo.FindByID(ctx, *assigneeID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%w: assignee %s does not exist", model.ErrValidation, *assigneeID)
		}
		return err
	}
	return nil
}

// normalizeInput trims the text fields, applies defaults, and checks limits.
func normalizeInput(in *TaskInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.SystemName = strings.TrimSpace(in.SystemName)
	if in.AssigneeID != nil && strings.TrimSpace(*in.AssigneeID) == "" {
		in.AssigneeID = nil
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if in.Status == "" {
		in.Status = model.StatusPending
	}

	switch {
	case in.Title == "":
		return fmt.Errorf("%w: title is required", model.ErrValidation)
	case utf8.RuneCountInString(in.Title) > model.MaxTitleLen:
		return fmt.Errorf("%w: title exceeds %d characters", model.ErrValidation, model.MaxTitleLen)
	case in.Description == "":
		return fmt.Errorf("%w: description is required", model.ErrValidation)
	case in.SystemName == "":
		return fmt.Errorf("%w: system name is required", model.ErrValidation)
	case utf8.RuneCountInString(in.SystemName) > model.MaxSystemLen:
		return fmt.Errorf("%w: system name exceeds %d characters", model.ErrValidation, model.MaxSystemLen)
	case !in.Priority.Valid():
		return fmt.Errorf("%w: unknown priority %q", model.ErrValidation, in.Priority)
	case !in.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", model.ErrValidation, in.Status)
	}
	return nil
}

// emit hands an event to the publisher after the store change has been
// committed. Delivery happens elsewhere.
func (s *TaskService) emit(kind notify.Kind, task *model.Task, users []string, channel string, comment *notify.CommentPayload) {
	s.events.Publish(notify.Event{
		Kind:       kind,
		UserIDs:    users,
		Channel:    channel,
		Task:       notify.SnapshotOf(task),
		Comment:    comment,
		OccurredAt: s.now(),
	})
}
