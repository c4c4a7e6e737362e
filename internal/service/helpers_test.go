package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"task-tracker/internal/model"
	"task-tracker/internal/notify"
	"task-tracker/internal/policy"
	"task-tracker/internal/repository"
)

// recordingPublisher keeps every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) all() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Event(nil), p.events...)
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// stepClock advances one minute on every reading so creation times differ.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type fixture struct {
	taskRepo *repository.TaskRepository
	userRepo *repository.UserRepository
	tasks    *TaskService
	users    *UserService
	events   *recordingPublisher
	clock    *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{
		taskRepo: repository.NewTaskRepository(db),
		userRepo: repository.NewUserRepository(db).WithHashCost(bcrypt.MinCost),
		events:   &recordingPublisher{},
		clock:    &stepClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.tasks = NewTaskService(f.taskRepo, f.userRepo, f.events).WithClock(f.clock.Now)
	f.users = NewUserService(f.userRepo, f.taskRepo).WithClock(f.clock.Now)
	return f
}

// user stores an account directly, bypassing the service checks.
func (f *fixture) user(t *testing.T, username string, role model.Role) policy.Caller {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", Role: role, CreatedAt: f.clock.Now()}
	if err := f.userRepo.Create(context.Background(), u, "pw-"+username); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return policy.Caller{UserID: u.ID, Role: role}
}

func (f *fixture) task(t *testing.T, by policy.Caller, title string, assignee *policy.Caller) *model.Task {
	t.Helper()
	in := TaskInput{
		Title:       title,
		Description: title + " details",
		Priority:    model.PriorityMedium,
		Status:      model.StatusPending,
		SystemName:  "billing",
	}
	if assignee != nil {
		id := assignee.UserID
		in.AssigneeID = &id
	}
	task, err := f.tasks.Create(context.Background(), by, in)
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func titles(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
