package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"task-tracker/internal/model"
)

// UserRepository handles CRUD and credentials for users.
type UserRepository struct {
	db   *gorm.DB
	cost int
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (r *UserRepository) WithHashCost(cost int) *UserRepository {
	r.cost = cost
	return r
}

// Create stores a new user with the given password. Username and email are
// unique regardless of case, and only one SystemAdministrator may exist.
func (r *UserRepository) Create(ctx context.Context, user *model.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.PasswordHash = string(hash)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return userWriteError("create user", err)
	}
	return nil
}

// Update saves profile and role changes of an existing user. The password
// hash and creation time are kept from the stored record.
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.User
		if err := tx.Where("id = ?", user.ID).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %s: %w", user.ID, model.ErrNotFound)
			}
			return fmt.Errorf("find user: %w", err)
		}
		user.PasswordHash = existing.PasswordHash
		user.CreatedAt = existing.CreatedAt
		if err := tx.Save(user).Error; err != nil {
			return userWriteError("update user", err)
		}
		return nil
	})
}

func userWriteError(op string, err error) error {
	column, ok := uniqueViolation(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch column {
	case "username_key":
		return fmt.Errorf("%s: %w: username already exists", op, model.ErrConflict)
	case "email_key":
		return fmt.Errorf("%s: %w: email already exists", op, model.ErrConflict)
	case "admin_slot":
		return fmt.Errorf("%s: %w: there can only be one system administrator", op, model.ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %v", op, model.ErrConflict, err)
	}
}

// Delete removes a user. It reports false when no user had userID.
func (r *UserRepository) Delete(ctx context.Context, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", userID).Delete(&model.User{})
	if res.Error != nil {
		return false, fmt.Errorf("delete user: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", userID), userID)
}

// FindByUsername matches the username case-insensitively.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(r.db.WithContext(ctx).Where("username_key = ?", model.NormalizeKey(username)), username)
}

// FindByEmail matches the email case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(r.db.WithContext(ctx).Where("email_key = ?", model.NormalizeKey(email)), email)
}

func (r *UserRepository) FindByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	return r.first(r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID), fmt.Sprintf("chat %d", chatID))
}

func (r *UserRepository) first(q *gorm.DB, key string) (*model.User, error) {
	var user model.User
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", key, model.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// ListAll returns every user ordered by username.
func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("username_key ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("username_key ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListLinked returns users that have a Telegram chat attached.
func (r *UserRepository) ListLinked(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id IS NOT NULL").Order("username_key ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Authenticate looks the user up by username or email and checks the
// password. A username match is tried before an email match. A wrong
// password is reported as ErrNotFound, like an unknown login.
func (r *UserRepository) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	key := model.NormalizeKey(login)
	var candidates []model.User
	if err := r.db.WithContext(ctx).
		Where("username_key = ? OR email_key = ?", key, key).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UsernameKey == key && candidates[j].UsernameKey != key
	})
	for i := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(candidates[i].PasswordHash), []byte(password)) == nil {
			return &candidates[i], nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", login, model.ErrNotFound)
}

// ChangePassword swaps the password when current matches. It reports false
// for an unknown user or a mismatched current password.
func (r *UserRepository) ChangePassword(ctx context.Context, userID, current, next string) (bool, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return false, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), r.cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		UpdateColumn("password_hash", string(hash)).Error; err != nil {
		return false, fmt.Errorf("change password: %w", err)
	}
	return true, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		UpdateColumn("last_login_at", at).Error; err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// LinkTelegram attaches a Telegram chat to the user, detaching it from any
// other user first.
func (r *UserRepository) LinkTelegram(ctx context.Context, userID string, chatID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).Where("telegram_chat_id = ? AND id <> ?", chatID, userID).
			UpdateColumn("telegram_chat_id", nil).Error; err != nil {
			return fmt.Errorf("unlink chat: %w", err)
		}
		res := tx.Model(&model.User{}).Where("id = ?", userID).UpdateColumn("telegram_chat_id", chatID)
		if res.Error != nil {
			return fmt.Errorf("link chat: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
		}
		return nil
	})
}

// ChatID resolves the Telegram chat linked to userID.
func (r *UserRepository) ChatID(ctx context.Context, userID string) (int64, bool, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if user.TelegramChatID == nil {
		return 0, false, nil
	}
	return *user.TelegramChatID, true, nil
}
