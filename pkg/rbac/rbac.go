package rbac

import (
	"slices"

	"projecthub/internal/model"
	"projecthub/pkg/apperr"
)

// 平台级权限（与项目内权限无关）
const (
	PermissionManageUsers  = "users:manage"
	PermissionReplayOutbox = "outbox:replay"
)

// 平台角色常量
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleUser: {},
	RoleAdmin: {
		PermissionManageUsers,
		PermissionReplayOutbox,
	},
}

// Roles 根据配置里的管理员邮箱决定平台角色
type Roles struct {
	adminEmails []string
}

func NewRoles(adminEmails []string) *Roles {
	normalized := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		if e = model.NormalizeEmail(e); e != "" {
			normalized = append(normalized, e)
		}
	}
	return &Roles{adminEmails: normalized}
}

// RoleOf 获取用户平台角色
func (r *Roles) RoleOf(u *model.User) string {
	if r != nil && u != nil && slices.Contains(r.adminEmails, model.NormalizeEmail(u.Email)) {
		return RoleAdmin
	}
	return RoleUser
}

// HasPermission 检查用户是否有指定平台权限
func (r *Roles) HasPermission(u *model.User, permission string) bool {
	return slices.Contains(rolePermissions[r.RoleOf(u)], permission)
}

// CheckPermission 返回 PermissionDenied 而不是布尔值，便于处理
func (r *Roles) CheckPermission(u *model.User, permission string) error {
	if !r.HasPermission(u, permission) {
		return apperr.PermissionDenied(permission)
	}
	return nil
}
