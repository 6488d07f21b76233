package service

import (
	"context"
	"time"

	"projecthub/internal/model"
	"projecthub/internal/repository"
)

// ProjectStats 项目任务统计
type ProjectStats struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"byStatus"`
	ByPriority     map[string]int `json:"byPriority"`
	ByAssignee     map[string]int `json:"byAssignee"`
	Unassigned     int            `json:"unassigned"`
	CompletionRate float64        `json:"completionRate"`
	Overdue        int            `json:"overdue"`
	TotalTimeSpent int            `json:"totalTimeSpent"`
	// 以下三项只统计填写了 successMetrics 的已完成任务
	Evaluated       int     `json:"evaluated"`
	OnTimeRate      float64 `json:"onTimeRate"`
	AvgQuality      float64 `json:"avgQuality"`
	AvgSatisfaction float64 `json:"avgSatisfaction"`
}

func (s *TaskService) Stats(ctx context.Context, actor *model.User, projectID string) (*ProjectStats, error) {
	if _, err := loadVisibleProject(ctx, s.projects, actor, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListTasks(ctx, projectID, repository.TaskFilter{})
	if err != nil {
		return nil, storeErr(err, "task")
	}
	return computeStats(tasks, s.now()), nil
}

func computeStats(tasks []*model.Task, now time.Time) *ProjectStats {
	st := &ProjectStats{
		Total:      len(tasks),
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
		ByAssignee: map[string]int{},
	}
	for _, s := range []model.TaskStatus{model.TaskPending, model.TaskInProgress, model.TaskCompleted} {
		st.ByStatus[string(s)] = 0
	}
	for _, p := range []model.TaskPriority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent} {
		st.ByPriority[string(p)] = 0
	}

	var onTime, quality, satisfaction int
	for _, t := range tasks {
		st.ByStatus[string(t.Status)]++
		st.ByPriority[string(t.Priority)]++
		st.TotalTimeSpent += t.TimeSpent
		if t.AssigneeID != nil {
			st.ByAssignee[*t.AssigneeID]++
		} else {
			st.Unassigned++
		}
		if t.Status != model.TaskCompleted && t.DueDate != nil && t.DueDate.Before(now) {
			st.Overdue++
		}
		if t.Status == model.TaskCompleted && t.SuccessMetrics != nil {
			st.Evaluated++
			quality += t.SuccessMetrics.Quality
			satisfaction += t.SuccessMetrics.Satisfaction
			if t.SuccessMetrics.OnTime {
				onTime++
			}
		}
	}

	if st.Total > 0 {
		st.CompletionRate = ratio(st.ByStatus[string(model.TaskCompleted)], st.Total)
	}
	if st.Evaluated > 0 {
		st.OnTimeRate = ratio(onTime, st.Evaluated)
		st.AvgQuality = ratio(quality, st.Evaluated)
		st.AvgSatisfaction = ratio(satisfaction, st.Evaluated)
	}
	return st
}

func ratio(n, d int) float64 {
	return float64(n) / float64(d)
}
