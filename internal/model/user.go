package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role decides what a user may see and change.
type Role string

const (
	RoleUser                Role = "User"
	RoleManager             Role = "Manager"
	RoleTaskAdministrator   Role = "TaskAdministrator"
	RoleSystemAdministrator Role = "SystemAdministrator"
)

// Roles lists every role from least to most privileged.
var Roles = []Role{RoleUser, RoleManager, RoleTaskAdministrator, RoleSystemAdministrator}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole matches a role name case-insensitively.
func ParseRole(s string) (Role, bool) {
	for _, v := range Roles {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

const (
	MaxUsernameLen = 100
	MaxEmailLen    = 100
)

// User is an account. UsernameKey and EmailKey hold the lowercased values so
// uniqueness is case-insensitive at the storage level; AdminSlot is set only
// for the SystemAdministrator and carries a unique index.
type User struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username       string     `gorm:"size:100;not null" json:"username"`
	UsernameKey    string     `gorm:"size:100;uniqueIndex;not null" json:"-"`
	Email          string     `gorm:"size:100;not null" json:"email"`
	EmailKey       string     `gorm:"size:100;uniqueIndex;not null" json:"-"`
	PasswordHash   string     `gorm:"not null" json:"-"`
	Role           Role       `gorm:"size:32;index;not null" json:"role"`
	AdminSlot      *int       `gorm:"uniqueIndex" json:"-"`
	TelegramChatID *int64     `gorm:"index" json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

// BeforeSave keeps the lookup keys and the administrator slot in step with
// the visible fields.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.UsernameKey = NormalizeKey(u.Username)
	u.EmailKey = NormalizeKey(u.Email)
	if u.Role == RoleSystemAdministrator {
		slot := 1
		u.AdminSlot = &slot
	} else {
		u.AdminSlot = nil
	}
	return nil
}

// NormalizeKey folds a username or email for comparison.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
