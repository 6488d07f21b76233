package service

import (
	"math"
	"testing"
	"time"

	"projecthub/internal/model"
)

func TestComputeStats(t *testing.T) {
	now := t0
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	m := "m"

	tasks := []*model.Task{
		{Status: model.TaskPending, Priority: model.PriorityHigh, DueDate: &past, TimeSpent: 30},
		{Status: model.TaskInProgress, Priority: model.PriorityLow, DueDate: &future, AssigneeID: &m},
		{Status: model.TaskCompleted, Priority: model.PriorityHigh, DueDate: &past, AssigneeID: &m, TimeSpent: 90,
			SuccessMetrics: &model.SuccessMetrics{Quality: 5, Satisfaction: 4, OnTime: true}},
		{Status: model.TaskCompleted, Priority: model.PriorityUrgent,
			SuccessMetrics: &model.SuccessMetrics{Quality: 2, Satisfaction: 3}},
	}

	st := computeStats(tasks, now)
	if st.Total != 4 || st.ByStatus["completed"] != 2 || st.ByStatus["pending"] != 1 {
		t.Fatalf("status counts = %+v", st.ByStatus)
	}
	if st.ByPriority["high"] != 2 || st.ByPriority["medium"] != 0 {
		t.Fatalf("priority counts = %+v", st.ByPriority)
	}
	if st.ByAssignee["m"] != 2 || st.Unassigned != 2 {
		t.Fatalf("assignee counts = %+v / %d", st.ByAssignee, st.Unassigned)
	}
	if st.Overdue != 1 {
		t.Fatalf("overdue = %d", st.Overdue)
	}
	if st.TotalTimeSpent != 120 {
		t.Fatalf("timeSpent = %d", st.TotalTimeSpent)
	}
	if st.CompletionRate != 0.5 || st.Evaluated != 2 || st.OnTimeRate != 0.5 {
		t.Fatalf("rates = %+v", st)
	}
	if math.Abs(st.AvgQuality-3.5) > 1e-9 || math.Abs(st.AvgSatisfaction-3.5) > 1e-9 {
		t.Fatalf("averages = %v / %v", st.AvgQuality, st.AvgSatisfaction)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	st := computeStats(nil, t0)
	if st.Total != 0 || st.CompletionRate != 0 || st.ByStatus["pending"] != 0 {
		t.Fatalf("empty stats = %+v", st)
	}
}
