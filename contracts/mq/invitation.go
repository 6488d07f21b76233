package mq

import "time"

// InvitationCreatedPayload invitation.created 事件，worker 据此发送邀请邮件
type InvitationCreatedPayload struct {
	InvitationID string    `json:"invitation_id"`
	ProjectID    string    `json:"project_id"`
	ProjectTitle string    `json:"project_title"`
	InviterID    string    `json:"inviter_id"`
	InviterName  string    `json:"inviter_name"`
	InviteeEmail string    `json:"invitee_email"`
	ExpiresAt    time.Time `json:"expires_at"`
	TraceID      string    `json:"trace_id,omitempty"`
}

// InvitationAcceptedPayload invitation.accepted 事件，通知邀请人
type InvitationAcceptedPayload struct {
	InvitationID string    `json:"invitation_id"`
	ProjectID    string    `json:"project_id"`
	ProjectTitle string    `json:"project_title"`
	InviterID    string    `json:"inviter_id"`
	InviterEmail string    `json:"inviter_email"`
	InviterName  string    `json:"inviter_name"`
	MemberID     string    `json:"member_id"`
	MemberName   string    `json:"member_name"`
	AcceptedAt   time.Time `json:"accepted_at"`
	TraceID      string    `json:"trace_id,omitempty"`
}

// InvitationRejectedPayload invitation.rejected 事件，目前只用于审计
type InvitationRejectedPayload struct {
	InvitationID string    `json:"invitation_id"`
	ProjectID    string    `json:"project_id"`
	InviteeEmail string    `json:"invitee_email"`
	RejectedAt   time.Time `json:"rejected_at"`
	TraceID      string    `json:"trace_id,omitempty"`
}
