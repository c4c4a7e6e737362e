package policy

import (
	"testing"

	"task-tracker/internal/model"
)

func TestPermissionTable(t *testing.T) {
	tests := []struct {
		role        model.Role
		scope       Scope
		mutateTasks bool
		viewUsers   bool
		createUsers bool
		updateUsers bool
		deleteUsers bool
		manageAdmin bool
	}{
		{model.RoleUser, ScopeOwnedOnly, false, false, false, false, false, false},
		{model.RoleManager, ScopeAll, true, false, false, false, false, false},
		{model.RoleTaskAdministrator, ScopeAll, true, true, true, true, false, false},
		{model.RoleSystemAdministrator, ScopeAll, true, true, true, true, true, true},
		{model.Role("Guest"), ScopeOwnedOnly, false, false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := ScopeFor(tt.role); got != tt.scope {
				t.Errorf("ScopeFor = %v, want %v", got, tt.scope)
			}
			if got := CanMutateTasks(tt.role); got != tt.mutateTasks {
				t.Errorf("CanMutateTasks = %v, want %v", got, tt.mutateTasks)
			}
			if got := CanViewUsers(tt.role); got != tt.viewUsers {
				t.Errorf("CanViewUsers = %v, want %v", got, tt.viewUsers)
			}
			if got := CanCreateUsers(tt.role); got != tt.createUsers {
				t.Errorf("CanCreateUsers = %v, want %v", got, tt.createUsers)
			}
			if got := CanUpdateUsers(tt.role); got != tt.updateUsers {
				t.Errorf("CanUpdateUsers = %v, want %v", got, tt.updateUsers)
			}
			if got := CanDeleteUsers(tt.role); got != tt.deleteUsers {
				t.Errorf("CanDeleteUsers = %v, want %v", got, tt.deleteUsers)
			}
			if got := CanManageAdmin(tt.role); got != tt.manageAdmin {
				t.Errorf("CanManageAdmin = %v, want %v", got, tt.manageAdmin)
			}
		})
	}
}

func TestHasRequiresEveryBit(t *testing.T) {
	if Has(model.RoleManager, MutateTasks|CreateUsers) {
		t.Error("manager should not hold CreateUsers")
	}
	if !Has(model.RoleSystemAdministrator, MutateTasks|DeleteUsers) {
		t.Error("system administrator should hold MutateTasks and DeleteUsers")
	}
	if Has(model.RoleSystemAdministrator, 0) {
		t.Error("empty capability set should never match")
	}
}

func TestCallerCanSee(t *testing.T) {
	owner := "u1"
	other := "u2"
	mine := &model.Task{ID: "t1", AssigneeID: &owner}
	theirs := &model.Task{ID: "t2", AssigneeID: &other}
	unassigned := &model.Task{ID: "t3"}

	user := Caller{UserID: owner, Role: model.RoleUser}
	if !user.CanSee(mine) {
		t.Error("user should see own task")
	}
	if user.CanSee(theirs) || user.CanSee(unassigned) {
		t.Error("user should only see tasks assigned to them")
	}

	manager := Caller{UserID: "m1", Role: model.RoleManager}
	for _, task := range []*model.Task{mine, theirs, unassigned} {
		if !manager.CanSee(task) {
			t.Errorf("manager should see %s", task.ID)
		}
	}
}
