package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"task-tracker/internal/model"
	"task-tracker/internal/policy"
)

// UserInput represents data required to create a user.
type UserInput struct {
	Username string
	Email    string
	Password string
	Role     model.Role
}

// UserUpdate carries the fields an administrator may change.
type UserUpdate struct {
	Username string
	Email    string
	Role     model.Role
}

// UserService enforces the account invariants: case-insensitive unique
// usernames and emails, and at most one SystemAdministrator. The checks run
// before the store call; the store's unique indexes catch concurrent writers
// that slip past them.
type UserService struct {
	userRepo UserStore
	taskRepo TaskStore
	now      func() time.Time
}

func NewUserService(userRepo UserStore, taskRepo TaskStore) *UserService {
	return &UserService{
		userRepo: userRepo,
		taskRepo: taskRepo,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for timestamps.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// Register creates an account through self-registration. The requested role
// is ignored; new accounts always get RoleUser.
func (s *UserService) Register(ctx context.Context, input UserInput) (*model.User, error) {
	input.Role = model.RoleUser
	user, err := s.create(ctx, input)
	if err != nil {
		return nil, err
	}
	log.Printf("[info] user registered id=%s username=%s", user.ID, user.Username)
	return user, nil
}

// Create adds an account on behalf of an administrator, with any role.
func (s *UserService) Create(ctx context.Context, caller policy.Caller, input UserInput) (*model.User, error) {
	if !policy.CanCreateUsers(caller.Role) {
		return nil, fmt.Errorf("%w: role %q cannot create users", model.ErrUnauthorized, caller.Role)
	}
	if input.Role == "" {
		input.Role = model.RoleUser
	}
	if input.Role == model.RoleSystemAdministrator && !policy.CanManageAdmin(caller.Role) {
		return nil, fmt.Errorf("%w: role %q cannot create a system administrator", model.ErrUnauthorized, caller.Role)
	}
	user, err := s.create(ctx, input)
	if err != nil {
		return nil, err
	}
	log.Printf("[info] user created id=%s username=%s role=%s by=%s", user.ID, user.Username, user.Role, caller.UserID)
	return user, nil
}

func (s *UserService) create(ctx context.Context, input UserInput) (*model.User, error) {
	username, email, err := normalizeIdentity(input.Username, input.Email)
	if err != nil {
		return nil, err
	}
	if input.Password == "" {
		return nil, fmt.Errorf("%w: password is required", model.ErrValidation)
	}
	if !input.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrValidation, input.Role)
	}
	if err := s.checkUnique(ctx, "", username, email, input.Role); err != nil {
		return nil, err
	}

	user := model.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Role:      input.Role,
		CreatedAt: s.now(),
	}
	if err := s.userRepo.Create(ctx, &user, input.Password); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update changes username, email and role of an existing user. Only holders
// of ManageAdmin may touch the SystemAdministrator account or grant that role.
func (s *UserService) Update(ctx context.Context, caller policy.Caller, userID string, input UserUpdate) (*model.User, error) {
	if !policy.CanUpdateUsers(caller.Role) {
		return nil, fmt.Errorf("%w: role %q cannot update users", model.ErrUnauthorized, caller.Role)
	}
	username, email, err := normalizeIdentity(input.Username, input.Email)
	if err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrValidation, input.Role)
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if (user.Role == model.RoleSystemAdministrator || input.Role == model.RoleSystemAdministrator) &&
		!policy.CanManageAdmin(caller.Role) {
		return nil, fmt.Errorf("%w: role %q cannot change the system administrator", model.ErrUnauthorized, caller.Role)
	}
	if err := s.checkUnique(ctx, user.ID, username, email, input.Role); err != nil {
		return nil, err
	}

	user.Username = username
	user.Email = email
	user.Role = input.Role
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("[info] user updated id=%s role=%s by=%s", user.ID, user.Role, caller.UserID)
	return user, nil
}

// checkUnique verifies the username, email and administrator invariants,
// ignoring the user being updated (selfID).
func (s *UserService) checkUnique(ctx context.Context, selfID, username, email string, role model.Role) error {
	if other, err := s.userRepo.FindByUsername(ctx, username); err == nil && other.ID != selfID {
		return fmt.Errorf("%w: username already exists", model.ErrConflict)
	} else if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}

	if other, err := s.userRepo.FindByEmail(ctx, email); err == nil && other.ID != selfID {
		return fmt.Errorf("%w: email already exists", model.ErrConflict)
	} else if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}

	// A login may be either field, so neither may repeat the other on another account.
	if other, err := s.userRepo.FindByEmail(ctx, username); err == nil && other.ID != selfID {
		return fmt.Errorf("%w: username is already used as an email", model.ErrConflict)
	} else if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	if other, err := s.userRepo.FindByUsername(ctx, email); err == nil && other.ID != selfID {
		return fmt.Errorf("%w: email is already used as a username", model.ErrConflict)
	} else if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}

	if role == model.RoleSystemAdministrator {
		admins, err := s.userRepo.ListByRole(ctx, model.RoleSystemAdministrator)
		if err != nil {
			return err
		}
		for _, admin := range admins {
			if admin.ID != selfID {
				return fmt.Errorf("%w: there can only be one system administrator", model.ErrConflict)
			}
		}
	}
	return nil
}

func normalizeIdentity(username, email string) (string, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	switch {
	case username == "":
		return "", "", fmt.Errorf("%w: username is required", model.ErrValidation)
	case utf8.RuneCountInString(username) > model.MaxUsernameLen:
		return "", "", fmt.Errorf("%w: username exceeds %d characters", model.ErrValidation, model.MaxUsernameLen)
	case email == "":
		return "", "", fmt.Errorf("%w: email is required", model.ErrValidation)
	case utf8.RuneCountInString(email) > model.MaxEmailLen:
		return "", "", fmt.Errorf("%w: email exceeds %d characters", model.ErrValidation, model.MaxEmailLen)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", "", fmt.Errorf("%w: email %q is not a valid address", model.ErrValidation, email)
	}
	return username, email, nil
}

// Delete removes a user and unassigns their tasks. It reports false when
// the user does not exist.
func (s *UserService) Delete(ctx context.Context, caller policy.Caller, userID string) (bool, error) {
	if !policy.CanDeleteUsers(caller.Role) {
		return false, fmt.Errorf("%w: role %q cannot delete users", model.ErrUnauthorized, caller.Role)
	}
	removed, err := s.userRepo.Delete(ctx, userID)
	if err != nil || !removed {
		return removed, err
	}
	log.Printf("[info] user deleted id=%s by=%s", userID, caller.UserID)

	tasks, err := s.taskRepo.ListByAssignee(ctx, userID)
	if err != nil {
		return true, fmt.Errorf("unassign tasks of %s: %w", userID, err)
	}
	for i := range tasks {
		tasks[i].AssigneeID = nil
		if err := s.taskRepo.Update(ctx, &tasks[i]); err != nil {
			return true, fmt.Errorf("unassign task %s: %w", tasks[i].ID, err)
		}
	}
	return true, nil
}

// Get returns a user. Callers without ViewUsers may only load themselves;
// anyone else is reported as not found.
func (s *UserService) Get(ctx context.Context, caller policy.Caller, userID string) (*model.User, error) {
	if caller.UserID != userID && !policy.CanViewUsers(caller.Role) {
		return nil, fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	return s.userRepo.FindByID(ctx, userID)
}

// List returns every user ordered by username.
func (s *UserService) List(ctx context.Context, caller policy.Caller) ([]model.User, error) {
	if !policy.CanViewUsers(caller.Role) {
		return nil, fmt.Errorf("%w: role %q cannot list users", model.ErrUnauthorized, caller.Role)
	}
	return s.userRepo.ListAll(ctx)
}

// Recent returns at most n users, newest account first.
func (s *UserService) Recent(ctx context.Context, caller policy.Caller, n int) ([]model.User, error) {
	users, err := s.List(ctx, caller)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	if n >= 0 && len(users) > n {
		users = users[:n]
	}
	return users, nil
}

// AssignedTasks lists the tasks assigned to userID. Owned-only callers may
// only ask about themselves.
func (s *UserService) AssignedTasks(ctx context.Context, caller policy.Caller, userID string) ([]model.Task, error) {
	if caller.Scope() != policy.ScopeAll && caller.UserID != userID {
		return nil, fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	return s.taskRepo.ListByAssignee(ctx, userID)
}

// Verify checks credentials without recording a login.
func (s *UserService) Verify(ctx context.Context, login, password string) (*model.User, error) {
	if strings.TrimSpace(login) == "" || password == "" {
		return nil, fmt.Errorf("user: %w", model.ErrNotFound)
	}
	return s.userRepo.Authenticate(ctx, login, password)
}

// Authenticate checks credentials and records the login time.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	user, err := s.Verify(ctx, login, password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		log.Printf("record login for %s: %v", user.ID, err)
	} else {
		user.LastLoginAt = &now
	}
	return user, nil
}

// ChangePassword replaces the caller's password. It reports false when the
// current password does not match.
func (s *UserService) ChangePassword(ctx context.Context, caller policy.Caller, current, next string) (bool, error) {
	if next == "" {
		return false, fmt.Errorf("%w: new password is required", model.ErrValidation)
	}
	return s.userRepo.ChangePassword(ctx, caller.UserID, current, next)
}

// EnsureAdmin creates the SystemAdministrator account when none exists. It
// returns the administrator and whether it was created now.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (*model.User, bool, error) {
	admins, err := s.userRepo.ListByRole(ctx, model.RoleSystemAdministrator)
	if err != nil {
		return nil, false, err
	}
	if len(admins) > 0 {
		return &admins[0], false, nil
	}
	user, err := s.create(ctx, UserInput{Username: username, Email: email, Password: password, Role: model.RoleSystemAdministrator})
	if err != nil {
		return nil, false, err
	}
	log.Printf("[info] seeded system administrator username=%s", user.Username)
	return user, true, nil
}

// LinkTelegram attaches a Telegram chat to the user for notifications.
func (s *UserService) LinkTelegram(ctx context.Context, userID string, chatID int64) error {
	if chatID == 0 {
		return fmt.Errorf("%w: chat id is required", model.ErrValidation)
	}
	return s.userRepo.LinkTelegram(ctx, userID, chatID)
}

func (s *UserService) FindByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	return s.userRepo.FindByTelegramChat(ctx, chatID)
}

// ListLinked returns users with a Telegram chat attached.
func (s *UserService) ListLinked(ctx context.Context) ([]model.User, error) {
	return s.userRepo.ListLinked(ctx)
}
