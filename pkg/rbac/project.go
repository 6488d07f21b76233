package rbac

import (
	"projecthub/internal/model"
	"projecthub/pkg/apperr"
)

// 项目内操作名，作为 PermissionDenied 的 Action
const (
	ActionUpdateProject   = "project:update"
	ActionDeleteProject   = "project:delete"
	ActionCreateTask      = "task:create"
	ActionUpdateTask      = "task:update"
	ActionDeleteTask      = "task:delete"
	ActionInvite          = "invitation:create"
	ActionRemoveMember    = "member:remove"
	ActionManageMilestone = "milestone:manage"
	ActionDeleteMilestone = "milestone:delete"
)

func IsOwner(actor *model.User, p *model.Project) bool {
	return actor != nil && p != nil && actor.ID == p.OwnerID
}

func IsMember(actor *model.User, p *model.Project) bool {
	return actor != nil && p != nil && p.HasMember(actor.ID)
}

func CanViewProject(actor *model.User, p *model.Project) bool {
	return IsMember(actor, p)
}

func CanCreateTask(actor *model.User, p *model.Project) bool {
	return IsOwner(actor, p) || (IsMember(actor, p) && p.Settings.AllowMemberTaskCreate)
}

func CanEditTask(actor *model.User, p *model.Project, t *model.Task) bool {
	if IsOwner(actor, p) {
		return true
	}
	return actor != nil && t != nil && t.IsAssignedTo(actor.ID) && p.Settings.AllowMemberTaskEdit
}

func CanDeleteTask(actor *model.User, p *model.Project) bool {
	return IsOwner(actor, p)
}

func CanInvite(actor *model.User, p *model.Project) bool {
	return IsOwner(actor, p) || (IsMember(actor, p) && p.Settings.AllowMemberInvite)
}

func CanRemoveMember(actor *model.User, p *model.Project, targetUserID string) bool {
	return IsOwner(actor, p) && targetUserID != p.OwnerID
}

// Require 把谓词结果转换为 PermissionDenied
func Require(allowed bool, action string) error {
	if !allowed {
		return apperr.PermissionDenied(action)
	}
	return nil
}

// RequireView 非成员一律返回 NotFound，不暴露项目是否存在
func RequireView(actor *model.User, p *model.Project) error {
	if !CanViewProject(actor, p) {
		return apperr.NotFound("project")
	}
	return nil
}
