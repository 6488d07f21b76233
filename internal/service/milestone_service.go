package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"projecthub/internal/model"
	"projecthub/pkg/apperr"
	"projecthub/pkg/rbac"
)

type MilestoneService struct {
	projects   ProjectStore
	milestones MilestoneStore
	now        Clock
}

func NewMilestoneService(projects ProjectStore, milestones MilestoneStore, now Clock) *MilestoneService {
	return &MilestoneService{projects: projects, milestones: milestones, now: clockOrDefault(now)}
}

type MilestoneInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
}

type UpdateMilestoneInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Completed   *bool      `json:"completed"`
}

// Create 与创建任务的权限相同
func (s *MilestoneService) Create(ctx context.Context, actor *model.User, projectID string, in MilestoneInput) (*model.Milestone, error) {
	p, err := loadVisibleProject(ctx, s.projects, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(rbac.CanCreateTask(actor, p), rbac.ActionManageMilestone); err != nil {
		return nil, err
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}

	now := s.now()
	m := &model.Milestone{
		ID:          uuid.NewString(),
		ProjectID:   p.ID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.milestones.CreateMilestone(ctx, m); err != nil {
		return nil, storeErr(err, "milestone")
	}
	return m, nil
}

func (s *MilestoneService) List(ctx context.Context, actor *model.User, projectID string) ([]*model.Milestone, error) {
	if _, err := loadVisibleProject(ctx, s.projects, actor, projectID); err != nil {
		return nil, err
	}
	ms, err := s.milestones.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "milestone")
	}
	return ms, nil
}

func (s *MilestoneService) loadVisible(ctx context.Context, actor *model.User, id string) (*model.Milestone, *model.Project, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, nil, storeErr(err, "milestone")
	}
	p, err := s.projects.GetProject(ctx, m.ProjectID)
	if err != nil {
		return nil, nil, storeErr(err, "milestone")
	}
	if !rbac.CanViewProject(actor, p) {
		return nil, nil, apperr.NotFound("milestone")
	}
	return m, p, nil
}

func (s *MilestoneService) Update(ctx context.Context, actor *model.User, id string, in UpdateMilestoneInput) (*model.Milestone, error) {
	m, p, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(rbac.CanCreateTask(actor, p), rbac.ActionManageMilestone); err != nil {
		return nil, err
	}
	if in.Title != nil {
		if m.Title, err = validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.DueDate != nil {
		m.DueDate = in.DueDate
	}
	applyBool(&m.Completed, in.Completed)
	m.UpdatedAt = s.now()

	if err := s.milestones.UpdateMilestone(ctx, m); err != nil {
		return nil, storeErr(err, "milestone")
	}
	return m, nil
}

// Delete 仅 owner；任务上的引用被清空
func (s *MilestoneService) Delete(ctx context.Context, actor *model.User, id string) error {
	_, p, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := rbac.Require(rbac.IsOwner(actor, p), rbac.ActionDeleteMilestone); err != nil {
		return err
	}
	return storeErr(s.milestones.DeleteMilestone(ctx, id), "milestone")
}
