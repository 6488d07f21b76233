package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontract "projecthub/contracts/mq"
	"projecthub/internal/model"
	"projecthub/internal/repository"
	"projecthub/pkg/apperr"
	"projecthub/pkg/metrics"
	"projecthub/pkg/mq"
	"projecthub/pkg/outbox"
	"projecthub/pkg/rbac"
	"projecthub/pkg/trace"
)

const aggregateInvitation = "invitation"

type InvitationService struct {
	projects    ProjectStore
	users       UserStore
	invitations InvitationStore
	now         Clock
	logger      *zap.Logger
}

func NewInvitationService(projects ProjectStore, users UserStore, invitations InvitationStore, now Clock, logger *zap.Logger) *InvitationService {
	return &InvitationService{
		projects:    projects,
		users:       users,
		invitations: invitations,
		now:         clockOrDefault(now),
		logger:      logger,
	}
}

// InvitationView 公开查看邀请时返回的信息（无需登录）
type InvitationView struct {
	*model.Invitation
	ProjectTitle string `json:"projectTitle"`
	InviterName  string `json:"inviterName"`
	Expired      bool   `json:"expired"`
}

// Create 需要 canInvite；同一 (project, email) 已有未过期 pending 邀请或对方已是成员时返回 Conflict
func (s *InvitationService) Create(ctx context.Context, actor *model.User, projectID, rawEmail string) (*model.Invitation, error) {
	email, err := parseEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	p, err := loadVisibleProject(ctx, s.projects, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(rbac.CanInvite(actor, p), rbac.ActionInvite); err != nil {
		return nil, err
	}

	invitee, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if p.HasMember(invitee.ID) {
			return nil, apperr.Conflict("user is already a project member")
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storeErr(err, "user")
	}

	now := s.now()
	inv := &model.Invitation{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		InviterID:    actor.ID,
		InviteeEmail: email,
		Status:       model.InvitationPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(model.InvitationTTL),
	}
	evt, err := outbox.NewEvent(aggregateInvitation, inv.ID, mq.RoutingInvitationCreated, mqcontract.InvitationCreatedPayload{
		InvitationID: inv.ID,
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		InviterID:    actor.ID,
		InviterName:  actor.Name,
		InviteeEmail: email,
		ExpiresAt:    inv.ExpiresAt,
		TraceID:      trace.FromContext(ctx),
	}, now)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := s.invitations.CreateInvitation(ctx, inv, now, evt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("a pending invitation already exists for this email")
		}
		return nil, storeErr(err, "invitation")
	}

	metrics.IncrementInvitationTransition("created")
	s.logger.Info("Invitation created",
		zap.String("invitation_id", inv.ID),
		zap.String("project_id", p.ID),
		zap.String("trace_id", trace.FromContext(ctx)),
	)
	return inv, nil
}

// Get 公开接口：受邀人可能还没有账号
func (s *InvitationService) Get(ctx context.Context, id string) (*InvitationView, error) {
	inv, err := s.invitations.GetInvitation(ctx, id)
	if err != nil {
		return nil, storeErr(err, "invitation")
	}
	view := &InvitationView{Invitation: inv, Expired: inv.IsExpired(s.now())}
	if p, err := s.projects.GetProject(ctx, inv.ProjectID); err == nil {
		view.ProjectTitle = p.Title
	}
	if u, err := s.users.GetUser(ctx, inv.InviterID); err == nil {
		view.InviterName = u.Name
	}
	return view, nil
}

// ListReceived pending 且未过期，最新的在前
func (s *InvitationService) ListReceived(ctx context.Context, actor *model.User) ([]*model.Invitation, error) {
	invs, err := s.invitations.ListPendingForEmail(ctx, model.NormalizeEmail(actor.Email), s.now())
	if err != nil {
		return nil, storeErr(err, "invitation")
	}
	return invs, nil
}

// ListForProject owner 或有邀请权限的成员可见
func (s *InvitationService) ListForProject(ctx context.Context, actor *model.User, projectID string) ([]*model.Invitation, error) {
	p, err := loadVisibleProject(ctx, s.projects, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(rbac.CanInvite(actor, p), rbac.ActionInvite); err != nil {
		return nil, err
	}
	invs, err := s.invitations.ListByProject(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "invitation")
	}
	return invs, nil
}

// checkActionable 检查顺序：NotFound, Expired, AlreadyProcessed, EmailMismatch
func (s *InvitationService) checkActionable(ctx context.Context, actor *model.User, id string, now time.Time) (*model.Invitation, error) {
	inv, err := s.invitations.GetInvitation(ctx, id)
	if err != nil {
		return nil, storeErr(err, "invitation")
	}
	if inv.IsExpired(now) {
		return nil, apperr.Expired("invitation has expired")
	}
	if inv.Status != model.InvitationPending {
		return nil, apperr.AlreadyProcessed("invitation has already been " + string(inv.Status))
	}
	if model.NormalizeEmail(actor.Email) != inv.InviteeEmail {
		return nil, apperr.EmailMismatch()
	}
	return inv, nil
}

// Accept 成员加入与状态写入原子提交；已是成员时只标记 accepted
func (s *InvitationService) Accept(ctx context.Context, actor *model.User, id string) (*model.Invitation, error) {
	now := s.now()
	inv, err := s.checkActionable(ctx, actor, id, now)
	if err != nil {
		return nil, err
	}

	p, err := s.projects.GetProject(ctx, inv.ProjectID)
	if err != nil {
		return nil, storeErr(err, "project")
	}
	payload := mqcontract.InvitationAcceptedPayload{
		InvitationID: inv.ID,
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		InviterID:    inv.InviterID,
		MemberID:     actor.ID,
		MemberName:   actor.Name,
		AcceptedAt:   now,
		TraceID:      trace.FromContext(ctx),
	}
	if inviter, err := s.users.GetUser(ctx, inv.InviterID); err == nil {
		payload.InviterEmail = inviter.Email
		payload.InviterName = inviter.Name
	}
	evt, err := outbox.NewEvent(aggregateInvitation, inv.ID, mq.RoutingInvitationAccepted, payload, now)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := s.invitations.AcceptInvitation(ctx, inv.ID, actor.ID, now, evt); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, apperr.AlreadyProcessed("invitation has already been processed")
		}
		return nil, storeErr(err, "invitation")
	}

	metrics.IncrementInvitationTransition("accepted")
	s.logger.Info("Invitation accepted",
		zap.String("invitation_id", inv.ID),
		zap.String("project_id", inv.ProjectID),
		zap.String("user_id", actor.ID),
	)
	inv.Status = model.InvitationAccepted
	inv.RespondedAt = &now
	return inv, nil
}

func (s *InvitationService) Reject(ctx context.Context, actor *model.User, id string) (*model.Invitation, error) {
	now := s.now()
	inv, err := s.checkActionable(ctx, actor, id, now)
	if err != nil {
		return nil, err
	}
	evt, err := outbox.NewEvent(aggregateInvitation, inv.ID, mq.RoutingInvitationRejected, mqcontract.InvitationRejectedPayload{
		InvitationID: inv.ID,
		ProjectID:    inv.ProjectID,
		InviteeEmail: inv.InviteeEmail,
		RejectedAt:   now,
		TraceID:      trace.FromContext(ctx),
	}, now)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := s.invitations.RejectInvitation(ctx, inv.ID, now, evt); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, apperr.AlreadyProcessed("invitation has already been processed")
		}
		return nil, storeErr(err, "invitation")
	}

	metrics.IncrementInvitationTransition("rejected")
	inv.Status = model.InvitationRejected
	inv.RespondedAt = &now
	return inv, nil
}

// PurgeExpired 清理过期超过 grace 的 pending 邀请，由定时任务调用
func (s *InvitationService) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	n, err := s.invitations.DeleteExpiredInvitations(ctx, s.now().Add(-grace))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddInvitationTransitions("purged", n)
		s.logger.Info("Expired invitations purged", zap.Int64("count", n))
	}
	return n, nil
}
