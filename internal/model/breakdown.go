package model

type BreakdownTask struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Estimate      string `json:"estimate"`
	SuggestedRole string `json:"suggestedRole"`
}

type BreakdownMilestone struct {
	Title string          `json:"title"`
	Tasks []BreakdownTask `json:"tasks"`
}

// Breakdown AI 生成的里程碑/任务拆解
type Breakdown struct {
	Milestones []BreakdownMilestone `json:"milestones"`
	// Source ai / fallback
	Source string `json:"source"`
}
