package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/apperr"
	"projecthub/pkg/metrics"
	"projecthub/pkg/rbac"
)

const maxGoalLength = 2000

// BreakdownGenerator 外部 AI 服务；失败时由实现返回固定的 fallback
type BreakdownGenerator interface {
	GenerateBreakdown(ctx context.Context, goal string, roles []string) *model.Breakdown
}

type BreakdownService struct {
	projects   ProjectStore
	tasks      TaskStore
	milestones MilestoneStore
	generator  BreakdownGenerator
	now        Clock
	logger     *zap.Logger
}

func NewBreakdownService(projects ProjectStore, tasks TaskStore, milestones MilestoneStore, generator BreakdownGenerator, now Clock, logger *zap.Logger) *BreakdownService {
	return &BreakdownService{
		projects:   projects,
		tasks:      tasks,
		milestones: milestones,
		generator:  generator,
		now:        clockOrDefault(now),
		logger:     logger,
	}
}

type BreakdownInput struct {
	Goal  string   `json:"goal"`
	Roles []string `json:"roles"`
	Apply bool     `json:"apply"`
}

// BreakdownResult Apply 为 true 时包含实际创建的里程碑和任务。
// Skipped 是因标题非法而未创建的条目数，被跳过的里程碑连同其任务一起计入。
type BreakdownResult struct {
	Breakdown  *model.Breakdown   `json:"breakdown"`
	Milestones []*model.Milestone `json:"milestones,omitempty"`
	Tasks      []*model.Task      `json:"tasks,omitempty"`
	Skipped    int                `json:"skipped,omitempty"`
}

func (s *BreakdownService) Generate(ctx context.Context, actor *model.User, projectID string, in BreakdownInput) (*BreakdownResult, error) {
	p, err := loadVisibleProject(ctx, s.projects, actor, projectID)
	if err != nil {
		return nil, err
	}
	if in.Apply {
		if err := rbac.Require(rbac.CanCreateTask(actor, p), rbac.ActionCreateTask); err != nil {
			return nil, err
		}
	}
	goal := strings.TrimSpace(in.Goal)
	if goal == "" {
		return nil, apperr.Validation("goal is required")
	}
	if len(goal) > maxGoalLength {
		return nil, apperr.Validationf("goal must be at most %d characters", maxGoalLength)
	}

	roles := make([]string, 0, len(in.Roles))
	for _, r := range in.Roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	bd := s.generator.GenerateBreakdown(ctx, goal, roles)
	result := &BreakdownResult{Breakdown: bd}
	if !in.Apply {
		return result, nil
	}

	if err := s.apply(ctx, actor, p, bd, result); err != nil {
		return nil, err
	}
	metrics.AddTaskGeneration(bd.Source, len(result.Tasks))
	s.logger.Info("Breakdown applied",
		zap.String("project_id", p.ID),
		zap.String("source", bd.Source),
		zap.Int("milestones", len(result.Milestones)),
		zap.Int("tasks", len(result.Tasks)),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// apply 每个里程碑建一条记录，任务以建议角色为 tag。
// 逐条写入，不做事务：中途写失败时已创建的记录保留，错误返回给调用方。
func (s *BreakdownService) apply(ctx context.Context, actor *model.User, p *model.Project, bd *model.Breakdown, result *BreakdownResult) error {
	now := s.now()
	for _, bm := range bd.Milestones {
		title, err := validateTitle(bm.Title)
		if err != nil {
			result.Skipped += 1 + len(bm.Tasks)
			continue
		}
		m := &model.Milestone{
			ID:        uuid.NewString(),
			ProjectID: p.ID,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.milestones.CreateMilestone(ctx, m); err != nil {
			return storeErr(err, "milestone")
		}
		result.Milestones = append(result.Milestones, m)

		for _, bt := range bm.Tasks {
			taskTitle, err := validateTitle(bt.Title)
			if err != nil {
				result.Skipped++
				continue
			}
			milestoneID := m.ID
			t := &model.Task{
				ID:          uuid.NewString(),
				ProjectID:   p.ID,
				MilestoneID: &milestoneID,
				Title:       taskTitle,
				Description: strings.TrimSpace(bt.Description),
				Status:      model.TaskPending,
				Priority:    model.PriorityMedium,
				Estimate:    strings.TrimSpace(bt.Estimate),
				Tags:        []string{},
				CreatedBy:   actor.ID,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if role := strings.TrimSpace(bt.SuggestedRole); role != "" {
				t.Tags = append(t.Tags, role)
			}
			if err := s.tasks.CreateTask(ctx, t); err != nil {
				return storeErr(err, "task")
			}
			result.Tasks = append(result.Tasks, t)
		}
	}
	return nil
}
