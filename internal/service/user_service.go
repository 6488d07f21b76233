package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/apperr"
	"projecthub/pkg/rbac"
)

type UserService struct {
	users  UserStore
	roles  *rbac.Roles
	now    Clock
	logger *zap.Logger
}

func NewUserService(users UserStore, roles *rbac.Roles, now Clock, logger *zap.Logger) *UserService {
	return &UserService{users: users, roles: roles, now: clockOrDefault(now), logger: logger}
}

// AdminUpdateInput 管理员可修改的字段
type AdminUpdateInput struct {
	Name   *string         `json:"name"`
	Active *bool           `json:"active"`
	Role   *model.UserRole `json:"role"`
}

func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return users, nil
}

// SearchByEmail 精确匹配（忽略大小写）
func (s *UserService) SearchByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return u, nil
}

// Update 停用用户后其 token 在下一次请求时即失效
func (s *UserService) Update(ctx context.Context, actor *model.User, id string, in AdminUpdateInput) (*model.User, error) {
	if err := s.roles.CheckPermission(actor, rbac.PermissionManageUsers); err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("name is required")
		}
		u.Name = name
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperr.Validationf("unknown role %q", *in.Role)
		}
		u.Role = *in.Role
	}
	if in.Active != nil {
		if !*in.Active && u.ID == actor.ID {
			return nil, apperr.Validation("admins cannot deactivate themselves")
		}
		u.Active = *in.Active
	}
	u.UpdatedAt = s.now()

	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, storeErr(err, "user")
	}
	s.logger.Info("User updated by admin",
		zap.String("user_id", u.ID),
		zap.String("admin_id", actor.ID),
		zap.Bool("active", u.Active),
	)
	return u, nil
}

func (s *UserService) IsAdmin(u *model.User) bool {
	return s.roles.RoleOf(u) == rbac.RoleAdmin
}
