package model

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	return s == TaskPending || s == TaskInProgress || s == TaskCompleted
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// SuccessMetrics 仅在任务完成后填写
type SuccessMetrics struct {
	Quality      int    `json:"quality"`
	Satisfaction int    `json:"satisfaction"`
	OnTime       bool   `json:"onTime"`
	Notes        string `json:"notes,omitempty"`
}

type Task struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"projectId"`
	MilestoneID    *string         `json:"milestoneId,omitempty"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Content        []Block         `json:"content,omitempty"`
	Status         TaskStatus      `json:"status"`
	Priority       TaskPriority    `json:"priority"`
	AssigneeID     *string         `json:"assigneeId,omitempty"`
	DueDate        *time.Time      `json:"dueDate,omitempty"`
	Estimate       string          `json:"estimate,omitempty"`
	Tags           []string        `json:"tags"`
	TimeSpent      int             `json:"timeSpent"`
	SuccessMetrics *SuccessMetrics `json:"successMetrics,omitempty"`
	CreatedBy      string          `json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

func (t *Task) IsAssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}
