package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	mqcontract "projecthub/contracts/mq"
	"projecthub/internal/notify"
	"projecthub/pkg/logger"
	"projecthub/pkg/mq"
	"projecthub/pkg/util"
)

const (
	handlerInviteEmail   = "invite_email"
	handlerAcceptedEmail = "accepted_email"
	handlerRejectedAudit = "rejected_audit"
)

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// InvitationCreatedHandler 给受邀人发送带邀请链接的邮件
type InvitationCreatedHandler struct {
	mailer  notify.Mailer
	baseURL string
	guard   *Guard
	logger  *zap.Logger
}

func NewInvitationCreatedHandler(mailer notify.Mailer, baseURL string, guard *Guard, logger *zap.Logger) *InvitationCreatedHandler {
	return &InvitationCreatedHandler{
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		guard:   guard,
		logger:  logger,
	}
}

func (h *InvitationCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontract.InvitationCreatedPayload
	if err := decode(raw, &p); err != nil {
		return h.guard.DeadLetter(ctx, mq.RoutingInvitationCreated, raw, err)
	}
	return h.guard.Run(ctx, handlerInviteEmail, mq.RoutingInvitationCreated, p.InvitationID, raw, func(ctx context.Context) error {
		subject, html, err := notify.BuildInvitationEmail(notify.InvitationEmailData{
			ProjectTitle: p.ProjectTitle,
			InviterName:  p.InviterName,
			Link:         h.baseURL + "/" + p.InvitationID,
			ExpiresAt:    p.ExpiresAt,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", util.ErrPermanent, err)
		}
		messageID, err := h.mailer.Send(ctx, p.InviteeEmail, subject, html)
		if err != nil {
			return err
		}
		logger.WithTrace(ctx, h.logger).Info("Invitation email sent",
			zap.String("invitation_id", p.InvitationID),
			zap.String("project_id", p.ProjectID),
			zap.String("message_id", messageID),
		)
		return nil
	})
}

// InvitationAcceptedHandler 通知邀请人对方已加入
type InvitationAcceptedHandler struct {
	mailer notify.Mailer
	guard  *Guard
	logger *zap.Logger
}

func NewInvitationAcceptedHandler(mailer notify.Mailer, guard *Guard, logger *zap.Logger) *InvitationAcceptedHandler {
	return &InvitationAcceptedHandler{mailer: mailer, guard: guard, logger: logger}
}

func (h *InvitationAcceptedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontract.InvitationAcceptedPayload
	if err := decode(raw, &p); err != nil {
		return h.guard.DeadLetter(ctx, mq.RoutingInvitationAccepted, raw, err)
	}
	return h.guard.Run(ctx, handlerAcceptedEmail, mq.RoutingInvitationAccepted, p.InvitationID, raw, func(ctx context.Context) error {
		log := logger.WithTrace(ctx, h.logger).With(zap.String("invitation_id", p.InvitationID))
		if p.InviterEmail == "" {
			log.Warn("Inviter has no email, skip acceptance notice")
			return nil
		}
		subject, html, err := notify.BuildAcceptedEmail(notify.AcceptedEmailData{
			ProjectTitle: p.ProjectTitle,
			InviterName:  p.InviterName,
			MemberName:   p.MemberName,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", util.ErrPermanent, err)
		}
		messageID, err := h.mailer.Send(ctx, p.InviterEmail, subject, html)
		if err != nil {
			return err
		}
		log.Info("Acceptance notice sent",
			zap.String("project_id", p.ProjectID),
			zap.String("member_id", p.MemberID),
			zap.String("message_id", messageID),
		)
		return nil
	})
}

// InvitationRejectedHandler 只写审计日志
type InvitationRejectedHandler struct {
	guard  *Guard
	logger *zap.Logger
}

func NewInvitationRejectedHandler(guard *Guard, logger *zap.Logger) *InvitationRejectedHandler {
	return &InvitationRejectedHandler{guard: guard, logger: logger}
}

func (h *InvitationRejectedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontract.InvitationRejectedPayload
	if err := decode(raw, &p); err != nil {
		return h.guard.DeadLetter(ctx, mq.RoutingInvitationRejected, raw, err)
	}
	return h.guard.Run(ctx, handlerRejectedAudit, mq.RoutingInvitationRejected, p.InvitationID, raw, func(ctx context.Context) error {
		logger.WithTrace(ctx, h.logger).Info("Invitation rejected",
			zap.String("invitation_id", p.InvitationID),
			zap.String("project_id", p.ProjectID),
			zap.String("invitee_email", p.InviteeEmail),
			zap.Time("rejected_at", p.RejectedAt),
		)
		return nil
	})
}
