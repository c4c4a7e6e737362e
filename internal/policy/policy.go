// Package policy maps roles to what they may see and change. All role checks
// in the service layer go through this table.
package policy

import "task-tracker/internal/model"

// Scope is the slice of tasks a caller may see.
type Scope int

const (
	// ScopeOwnedOnly limits visibility to tasks assigned to the caller.
	ScopeOwnedOnly Scope = iota
	// ScopeAll applies no filtering.
	ScopeAll
)

func (s Scope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "owned"
}

// Capability is a permission bit.
type Capability uint8

const (
	ViewAllTasks Capability = 1 << iota
	MutateTasks
	ViewUsers
	CreateUsers
	UpdateUsers
	DeleteUsers
	// ManageAdmin covers granting, revoking or editing the SystemAdministrator account.
	ManageAdmin
)

var table = map[model.Role]Capability{
	model.RoleUser:                0,
	model.RoleManager:             ViewAllTasks | MutateTasks,
	model.RoleTaskAdministrator:   ViewAllTasks | MutateTasks | ViewUsers | CreateUsers | UpdateUsers,
	model.RoleSystemAdministrator: ViewAllTasks | MutateTasks | ViewUsers | CreateUsers | UpdateUsers | DeleteUsers | ManageAdmin,
}

// CapabilitiesOf returns the permission bits for role. Unknown roles get none.
func CapabilitiesOf(role model.Role) Capability {
	return table[role]
}

// Has reports whether role holds every bit in c.
func Has(role model.Role, c Capability) bool {
	return c != 0 && CapabilitiesOf(role)&c == c
}

// ScopeFor resolves the task visibility of role.
func ScopeFor(role model.Role) Scope {
	if Has(role, ViewAllTasks) {
		return ScopeAll
	}
	return ScopeOwnedOnly
}

func CanMutateTasks(role model.Role) bool { return Has(role, MutateTasks) }
func CanViewUsers(role model.Role) bool { return Has(role, ViewUsers) }
func CanCreateUsers(role model.Role) bool { return Has(role, CreateUsers) }
func CanUpdateUsers(role model.Role) bool { return Has(role, UpdateUsers) }
func CanDeleteUsers(role model.Role) bool { return Has(role, DeleteUsers) }
func CanManageAdmin(role model.Role) bool { return Has(role, ManageAdmin) }

// Caller is an already authenticated identity.
type Caller struct {
	UserID string
	Role   model.Role
}

// Scope resolves the caller's task visibility.
func (c Caller) Scope() Scope {
	return ScopeFor(c.Role)
}

// CanSee reports whether task is inside the caller's scope.
func (c Caller) CanSee(task *model.Task) bool {
	if c.Scope() == ScopeAll {
		return true
	}
	return task.AssignedTo(c.UserID)
}
