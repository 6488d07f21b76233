package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/repository"
	"projecthub/pkg/apperr"
	"projecthub/pkg/rbac"
)

const maxTags = 20

type TaskService struct {
	projects   ProjectStore
	tasks      TaskStore
	milestones MilestoneStore
	now        Clock
	logger     *zap.Logger
}

func NewTaskService(projects ProjectStore, tasks TaskStore, milestones MilestoneStore, now Clock, logger *zap.Logger) *TaskService {
	return &TaskService{
		projects:   projects,
		tasks:      tasks,
		milestones: milestones,
		now:        clockOrDefault(now),
		logger:     logger,
	}
}

type CreateTaskInput struct {
	ProjectID      string                `json:"projectId"`
	MilestoneID    *string               `json:"milestoneId"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Content        []model.Block         `json:"content"`
	Status         model.TaskStatus      `json:"status"`
	Priority       model.TaskPriority    `json:"priority"`
	AssigneeID     *string               `json:"assigneeId"`
	DueDate        *time.Time            `json:"dueDate"`
	Estimate       string                `json:"estimate"`
	Tags           []string              `json:"tags"`
	TimeSpent      int                   `json:"timeSpent"`
	SuccessMetrics *model.SuccessMetrics `json:"successMetrics"`
}

// UpdateTaskInput nil 表示不修改；AssigneeID / MilestoneID 指向空串表示清空
type UpdateTaskInput struct {
	MilestoneID    *string               `json:"milestoneId"`
	Title          *string               `json:"title"`
	Description    *string               `json:"description"`
	Content        *[]model.Block        `json:"content"`
	Status         *model.TaskStatus     `json:"status"`
	Priority       *model.TaskPriority   `json:"priority"`
	AssigneeID     *string               `json:"assigneeId"`
	DueDate        *time.Time            `json:"dueDate"`
	Estimate       *string               `json:"estimate"`
	Tags           *[]string             `json:"tags"`
	TimeSpent      *int                  `json:"timeSpent"`
	SuccessMetrics *model.SuccessMetrics `json:"successMetrics"`
}

func (s *TaskService) Create(ctx context.Context, actor *model.User, in CreateTaskInput) (*model.Task, error) {
	p, err := loadVisibleProject(ctx, s.projects, actor, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(rbac.CanCreateTask(actor, p), rbac.ActionCreateTask); err != nil {
		return nil, err
	}

	now := s.now()
	t := &model.Task{
		ID:          uuid.NewString(),
		ProjectID:   p.ID,
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		Estimate:    strings.TrimSpace(in.Estimate),
		TimeSpent:   in.TimeSpent,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = model.TaskPending
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.Title, err = validateTitle(in.Title); err != nil {
		return nil, err
	}
	if t.Tags, err = normalizeTags(in.Tags); err != nil {
		return nil, err
	}
	if t.Content, err = normalizeContent(in.Content); err != nil {
		return nil, err
	}
	if err := s.setAssignee(p, t, in.AssigneeID); err != nil {
		return nil, err
	}
	if err := s.setMilestone(ctx, p, t, in.MilestoneID); err != nil {
		return nil, err
	}
	if t.Status == model.TaskCompleted {
		t.CompletedAt = &now
	}
	t.SuccessMetrics = in.SuccessMetrics
	if err := validateTask(t); err != nil {
		return nil, err
	}

	if err := s.tasks.CreateTask(ctx, t); err != nil {
		return nil, storeErr(err, "task")
	}
	return t, nil
}

// loadVisibleTask 任务所属项目对 actor 不可见时返回 NotFound
func (s *TaskService) loadVisibleTask(ctx context.Context, actor *model.User, id string) (*model.Task, *model.Project, error) {
	t, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, nil, storeErr(err, "task")
	}
	p, err := s.projects.GetProject(ctx, t.ProjectID)
	if err != nil {
		return nil, nil, storeErr(err, "task")
	}
	if !rbac.CanViewProject(actor, p) {
		return nil, nil, apperr.NotFound("task")
	}
	return t, p, nil
}

func (s *TaskService) Get(ctx context.Context, actor *model.User, id string) (*model.Task, error) {
	t, _, err := s.loadVisibleTask(ctx, actor, id)
	return t, err
}

func (s *TaskService) List(ctx context.Context, actor *model.User, projectID string, f repository.TaskFilter) ([]*model.Task, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validationf("unknown status %q", f.Status)
	}
	if _, err := loadVisibleProject(ctx, s.projects, actor, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListTasks(ctx, projectID, f)
	if err != nil {
		return nil, storeErr(err, "task")
	}
	return tasks, nil
}

// Update completedAt 只在状态首次进入 completed 时写入；离开 completed 时清空 completedAt 与 successMetrics
func (s *TaskService) Update(ctx context.Context, actor *model.User, id string, in UpdateTaskInput) (*model.Task, error) {
	t, p, err := s.loadVisibleTask(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(rbac.CanEditTask(actor, p, t), rbac.ActionUpdateTask); err != nil {
		return nil, err
	}

	wasCompleted := t.Status == model.TaskCompleted
	if in.Title != nil {
		if t.Title, err = validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.Content != nil {
		if t.Content, err = normalizeContent(*in.Content); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.AssigneeID != nil {
		if err := s.setAssignee(p, t, in.AssigneeID); err != nil {
			return nil, err
		}
	}
	if in.MilestoneID != nil {
		if err := s.setMilestone(ctx, p, t, in.MilestoneID); err != nil {
			return nil, err
		}
	}
	if in.DueDate != nil {
		t.DueDate = in.DueDate
	}
	if in.Estimate != nil {
		t.Estimate = strings.TrimSpace(*in.Estimate)
	}
	if in.Tags != nil {
		if t.Tags, err = normalizeTags(*in.Tags); err != nil {
			return nil, err
		}
	}
	if in.TimeSpent != nil {
		t.TimeSpent = *in.TimeSpent
	}

	now := s.now()
	isCompleted := t.Status == model.TaskCompleted
	switch {
	case isCompleted && !wasCompleted:
		t.CompletedAt = &now
	case !isCompleted && wasCompleted:
		t.CompletedAt = nil
		t.SuccessMetrics = nil
	}
	if in.SuccessMetrics != nil {
		t.SuccessMetrics = in.SuccessMetrics
	}
	if err := validateTask(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = now

	if err := s.tasks.UpdateTask(ctx, t); err != nil {
		return nil, storeErr(err, "task")
	}
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, actor *model.User, id string) error {
	_, p, err := s.loadVisibleTask(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := rbac.Require(rbac.CanDeleteTask(actor, p), rbac.ActionDeleteTask); err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		return storeErr(err, "task")
	}
	return nil
}

// setAssignee 空串或 nil 表示不指派；被指派人必须是项目成员
func (s *TaskService) setAssignee(p *model.Project, t *model.Task, assigneeID *string) error {
	if assigneeID == nil || *assigneeID == "" {
		t.AssigneeID = nil
		return nil
	}
	if !p.HasMember(*assigneeID) {
		return apperr.Validation("assignee must be a project member")
	}
	id := *assigneeID
	t.AssigneeID = &id
	return nil
}

func (s *TaskService) setMilestone(ctx context.Context, p *model.Project, t *model.Task, milestoneID *string) error {
	if milestoneID == nil || *milestoneID == "" {
		t.MilestoneID = nil
		return nil
	}
	m, err := s.milestones.GetMilestone(ctx, *milestoneID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return storeErr(err, "milestone")
	}
	if m == nil || m.ProjectID != p.ID {
		return apperr.Validation("milestone does not belong to this project")
	}
	id := m.ID
	t.MilestoneID = &id
	return nil
}

func validateTask(t *model.Task) error {
	if !t.Status.Valid() {
		return apperr.Validationf("unknown status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return apperr.Validationf("unknown priority %q", t.Priority)
	}
	if t.TimeSpent < 0 {
		return apperr.Validation("timeSpent must be >= 0")
	}
	if m := t.SuccessMetrics; m != nil {
		if t.Status != model.TaskCompleted {
			return apperr.Validation("successMetrics can only be set on completed tasks")
		}
		if m.Quality < 1 || m.Quality > 5 || m.Satisfaction < 1 || m.Satisfaction > 5 {
			return apperr.Validation("quality and satisfaction must be between 1 and 5")
		}
	}
	return nil
}

// normalizeTags 去空白、去重，保持首次出现的顺序
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	if len(out) > maxTags {
		return nil, apperr.Validationf("at most %d tags are allowed", maxTags)
	}
	return out, nil
}

func normalizeContent(blocks []model.Block) ([]model.Block, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	out, err := model.NormalizeContent(blocks)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return out, nil
}
