package rbac

import (
	"testing"

	"projecthub/internal/model"
	"projecthub/pkg/apperr"
)

func strPtr(s string) *string { return &s }

func fixtures(settings model.ProjectSettings) (owner, member, outsider *model.User, p *model.Project) {
	owner = &model.User{ID: "owner"}
	member = &model.User{ID: "member"}
	outsider = &model.User{ID: "outsider"}
	p = &model.Project{
		ID:        "p1",
		OwnerID:   owner.ID,
		Settings:  settings,
		MemberIDs: []string{owner.ID, member.ID},
	}
	return
}

func TestIsMemberIncludesOwnerImplicitly(t *testing.T) {
	owner := &model.User{ID: "o"}
	p := &model.Project{OwnerID: "o"}
	if !IsMember(owner, p) {
		t.Fatal("owner should be a member even when absent from memberIds")
	}
}

func TestCanViewProject(t *testing.T) {
	owner, member, outsider, p := fixtures(model.DefaultProjectSettings())
	tests := []struct {
		name  string
		actor *model.User
		want  bool
	}{
		{"owner", owner, true},
		{"member", member, true},
		{"outsider", outsider, false},
		{"nil actor", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanViewProject(tt.actor, p); got != tt.want {
				t.Errorf("CanViewProject = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanCreateTask(t *testing.T) {
	tests := []struct {
		name      string
		allow     bool
		actorName string
		want      bool
	}{
		{"owner without flag", false, "owner", true},
		{"member without flag", false, "member", false},
		{"member with flag", true, "member", true},
		{"outsider with flag", true, "outsider", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.DefaultProjectSettings()
			s.AllowMemberTaskCreate = tt.allow
			owner, member, outsider, p := fixtures(s)
			actor := map[string]*model.User{"owner": owner, "member": member, "outsider": outsider}[tt.actorName]
			if got := CanCreateTask(actor, p); got != tt.want {
				t.Errorf("CanCreateTask = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanEditTask(t *testing.T) {
	tests := []struct {
		name      string
		allowEdit bool
		assignee  *string
		actorName string
		want      bool
	}{
		{"owner unassigned", false, nil, "owner", true},
		{"assignee with flag", true, strPtr("member"), "member", true},
		{"assignee without flag", false, strPtr("member"), "member", false},
		{"member not assignee", true, strPtr("owner"), "member", false},
		{"member unassigned", true, nil, "member", false},
		{"outsider assigned", true, strPtr("outsider"), "outsider", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.DefaultProjectSettings()
			s.AllowMemberTaskEdit = tt.allowEdit
			owner, member, outsider, p := fixtures(s)
			actor := map[string]*model.User{"owner": owner, "member": member, "outsider": outsider}[tt.actorName]
			task := &model.Task{ProjectID: p.ID, AssigneeID: tt.assignee}
			if got := CanEditTask(actor, p, task); got != tt.want {
				t.Errorf("CanEditTask = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOwnerOnlyPredicates(t *testing.T) {
	s := model.ProjectSettings{AllowMemberTaskEdit: true, AllowMemberTaskCreate: true, AllowMemberInvite: true}
	owner, member, _, p := fixtures(s)

	if !CanDeleteTask(owner, p) || CanDeleteTask(member, p) {
		t.Error("only the owner may delete tasks regardless of settings")
	}
	if !CanRemoveMember(owner, p, member.ID) {
		t.Error("owner should remove a member")
	}
	if CanRemoveMember(owner, p, owner.ID) {
		t.Error("removing the owner must always be rejected")
	}
	if CanRemoveMember(member, p, "someone") {
		t.Error("members cannot remove members")
	}
}

func TestCanInvite(t *testing.T) {
	owner, member, outsider, p := fixtures(model.DefaultProjectSettings())
	if !CanInvite(owner, p) {
		t.Error("owner can always invite")
	}
	if CanInvite(member, p) {
		t.Error("member cannot invite by default")
	}
	p.Settings.AllowMemberInvite = true
	if !CanInvite(member, p) {
		t.Error("member can invite when allowed")
	}
	if CanInvite(outsider, p) {
		t.Error("outsider can never invite")
	}
}

func TestRequireHelpers(t *testing.T) {
	_, _, outsider, p := fixtures(model.DefaultProjectSettings())
	if err := RequireView(outsider, p); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("RequireView outsider = %v, want NotFound", err)
	}
	err := Require(false, ActionDeleteTask)
	var ae *apperr.Error
	if !apperr.Is(err, apperr.KindPermissionDenied) {
		t.Fatalf("Require = %v", err)
	}
	ae = err.(*apperr.Error)
	if ae.Action != ActionDeleteTask {
		t.Errorf("action = %q", ae.Action)
	}
	if Require(true, ActionDeleteTask) != nil {
		t.Error("allowed check should return nil")
	}
}

func TestRolesFromAdminEmails(t *testing.T) {
	roles := NewRoles([]string{" Admin@Example.com "})
	admin := &model.User{ID: "a", Email: "admin@example.com"}
	user := &model.User{ID: "u", Email: "user@example.com"}

	if roles.RoleOf(admin) != RoleAdmin || roles.RoleOf(user) != RoleUser {
		t.Fatal("unexpected role resolution")
	}
	if err := roles.CheckPermission(user, PermissionManageUsers); !apperr.Is(err, apperr.KindPermissionDenied) {
		t.Errorf("user should be denied, got %v", err)
	}
	if err := roles.CheckPermission(admin, PermissionReplayOutbox); err != nil {
		t.Errorf("admin should be allowed, got %v", err)
	}
}
