package model

import (
	"slices"
	"time"
)

// ProjectSettings 放宽 owner-only 默认权限的开关
type ProjectSettings struct {
	AllowMemberTaskEdit   bool `json:"allowMemberTaskEdit"`
	AllowMemberTaskCreate bool `json:"allowMemberTaskCreate"`
	AllowMemberInvite     bool `json:"allowMemberInvite"`
}

func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{
		AllowMemberTaskEdit:   true,
		AllowMemberTaskCreate: false,
		AllowMemberInvite:     false,
	}
}

type Project struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	OwnerID     string          `json:"ownerId"`
	Settings    ProjectSettings `json:"settings"`
	MemberIDs   []string        `json:"memberIds"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// HasMember owner 总是成员
func (p *Project) HasMember(userID string) bool {
	if userID == "" {
		return false
	}
	return p.OwnerID == userID || slices.Contains(p.MemberIDs, userID)
}
