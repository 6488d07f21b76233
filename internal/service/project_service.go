package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/apperr"
	"projecthub/pkg/rbac"
)

const maxTitleLength = 200

type ProjectService struct {
	projects ProjectStore
	users    UserStore
	now      Clock
	logger   *zap.Logger
}

func NewProjectService(projects ProjectStore, users UserStore, now Clock, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		projects: projects,
		users:    users,
		now:      clockOrDefault(now),
		logger:   logger,
	}
}

type CreateProjectInput struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Settings    *SettingsPatch `json:"settings"`
}

// SettingsPatch 未提供的字段保持不变
type SettingsPatch struct {
	AllowMemberTaskEdit   *bool `json:"allowMemberTaskEdit"`
	AllowMemberTaskCreate *bool `json:"allowMemberTaskCreate"`
	AllowMemberInvite     *bool `json:"allowMemberInvite"`
}

type UpdateProjectInput struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Settings    *SettingsPatch `json:"settings"`
}

// loadVisibleProject 非成员得到 NotFound
func loadVisibleProject(ctx context.Context, projects ProjectStore, actor *model.User, id string) (*model.Project, error) {
	p, err := projects.GetProject(ctx, id)
	if err != nil {
		return nil, storeErr(err, "project")
	}
	if err := rbac.RequireView(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation("title is required")
	}
	if len(title) > maxTitleLength {
		return "", apperr.Validationf("title must be at most %d characters", maxTitleLength)
	}
	return title, nil
}

// Create 对任何已登录用户都成功；owner 自动加入成员
func (s *ProjectService) Create(ctx context.Context, actor *model.User, in CreateProjectInput) (*model.Project, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	settings := model.DefaultProjectSettings()
	in.Settings.applyTo(&settings)

	now := s.now()
	p := &model.Project{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		OwnerID:     actor.ID,
		Settings:    settings,
		MemberIDs:   []string{actor.ID},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, storeErr(err, "project")
	}
	s.logger.Info("Project created", zap.String("project_id", p.ID), zap.String("owner_id", actor.ID))
	return p, nil
}

func (s *ProjectService) List(ctx context.Context, actor *model.User) ([]*model.Project, error) {
	projects, err := s.projects.ListProjectsForUser(ctx, actor.ID)
	if err != nil {
		return nil, storeErr(err, "project")
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, actor *model.User, id string) (*model.Project, error) {
	return loadVisibleProject(ctx, s.projects, actor, id)
}

func (s *ProjectService) Update(ctx context.Context, actor *model.User, id string, in UpdateProjectInput) (*model.Project, error) {
	p, err := loadVisibleProject(ctx, s.projects, actor, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(rbac.IsOwner(actor, p), rbac.ActionUpdateProject); err != nil {
		return nil, err
	}

	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		p.Title = title
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	in.Settings.applyTo(&p.Settings)
	p.UpdatedAt = s.now()

	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return nil, storeErr(err, "project")
	}
	return p, nil
}

func (sp *SettingsPatch) applyTo(dst *model.ProjectSettings) {
	if sp == nil {
		return
	}
	applyBool(&dst.AllowMemberTaskEdit, sp.AllowMemberTaskEdit)
	applyBool(&dst.AllowMemberTaskCreate, sp.AllowMemberTaskCreate)
	applyBool(&dst.AllowMemberInvite, sp.AllowMemberInvite)
}

func applyBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (s *ProjectService) Delete(ctx context.Context, actor *model.User, id string) error {
	p, err := loadVisibleProject(ctx, s.projects, actor, id)
	if err != nil {
		return err
	}
	if err := rbac.Require(rbac.IsOwner(actor, p), rbac.ActionDeleteProject); err != nil {
		return err
	}
	if err := s.projects.DeleteProject(ctx, id); err != nil {
		return storeErr(err, "project")
	}
	s.logger.Info("Project deleted", zap.String("project_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// Members 项目成员的用户记录（owner 在内）
func (s *ProjectService) Members(ctx context.Context, actor *model.User, id string) ([]*model.User, error) {
	p, err := loadVisibleProject(ctx, s.projects, actor, id)
	if err != nil {
		return nil, err
	}
	users, err := s.users.GetUsers(ctx, p.MemberIDs)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return users, nil
}

// RemoveMember 目标不是成员时返回 NotFound
func (s *ProjectService) RemoveMember(ctx context.Context, actor *model.User, projectID, targetUserID string) error {
	p, err := loadVisibleProject(ctx, s.projects, actor, projectID)
	if err != nil {
		return err
	}
	if err := rbac.Require(rbac.CanRemoveMember(actor, p, targetUserID), rbac.ActionRemoveMember); err != nil {
		return err
	}
	removed, err := s.projects.RemoveMember(ctx, projectID, targetUserID, s.now())
	if err != nil {
		return storeErr(err, "member")
	}
	if !removed {
		return apperr.NotFound("member")
	}
	s.logger.Info("Member removed",
		zap.String("project_id", projectID),
		zap.String("user_id", targetUserID),
	)
	return nil
}
