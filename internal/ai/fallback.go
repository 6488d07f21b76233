package ai

import "projecthub/internal/model"

// Fallback AI 不可用时的固定拆解：规划、实现、验收三个阶段
func Fallback(goal string) *model.Breakdown {
	return &model.Breakdown{
		Source: SourceFallback,
		Milestones: []model.BreakdownMilestone{
			{
				Title: "Planning",
				Tasks: []model.BreakdownTask{
					{Title: "Define scope", Description: "Clarify the goal: " + goal, Estimate: "1d", SuggestedRole: "general"},
					{Title: "Design the solution", Description: "Sketch flows and wireframes", Estimate: "2d", SuggestedRole: "design"},
				},
			},
			{
				Title: "Implementation",
				Tasks: []model.BreakdownTask{
					{Title: "Build the backend", Description: "APIs and data model", Estimate: "3d", SuggestedRole: "backend"},
					{Title: "Build the frontend", Description: "User-facing screens", Estimate: "3d", SuggestedRole: "frontend"},
				},
			},
			{
				Title: "Launch",
				Tasks: []model.BreakdownTask{
					{Title: "Test and fix", Description: "End-to-end verification", Estimate: "2d", SuggestedRole: "general"},
					{Title: "Announce the release", Description: "Release notes and outreach", Estimate: "1d", SuggestedRole: "marketing"},
				},
			},
		},
	}
}
