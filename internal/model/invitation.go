package model

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

// InvitationTTL expiresAt = createdAt + 7 天
const InvitationTTL = 7 * 24 * time.Hour

type Invitation struct {
	ID           string           `json:"id"`
	ProjectID    string           `json:"projectId"`
	InviterID    string           `json:"inviterId"`
	InviteeEmail string           `json:"inviteeEmail"`
	Status       InvitationStatus `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	ExpiresAt    time.Time        `json:"expiresAt"`
	RespondedAt  *time.Time       `json:"respondedAt,omitempty"`
}

// IsExpired 过期是惰性的：状态仍为 pending，但超过 expiresAt 后不可操作
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsActionable pending 且未过期
func (i *Invitation) IsActionable(now time.Time) bool {
	return i.Status == InvitationPending && !i.IsExpired(now)
}
