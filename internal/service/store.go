package service

import (
	"context"
	"errors"
	"time"

	"projecthub/internal/model"
	"projecthub/internal/repository"
	"projecthub/pkg/apperr"
	"projecthub/pkg/outbox"
)

// 存储端口：repository（postgres）与 repository/kv（redis）都实现这些接口

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	GetUsers(ctx context.Context, ids []string) ([]*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
}

type ProjectStore interface {
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]*model.Project, error)
	UpdateProject(ctx context.Context, p *model.Project) error
	DeleteProject(ctx context.Context, id string) error
	RemoveMember(ctx context.Context, projectID, userID string, now time.Time) (bool, error)
}

type TaskStore interface {
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, projectID string, f repository.TaskFilter) ([]*model.Task, error)
	UpdateTask(ctx context.Context, t *model.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type MilestoneStore interface {
	CreateMilestone(ctx context.Context, m *model.Milestone) error
	GetMilestone(ctx context.Context, id string) (*model.Milestone, error)
	ListMilestones(ctx context.Context, projectID string) ([]*model.Milestone, error)
	UpdateMilestone(ctx context.Context, m *model.Milestone) error
	DeleteMilestone(ctx context.Context, id string) error
}

type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv *model.Invitation, now time.Time, evt *outbox.Event) error
	GetInvitation(ctx context.Context, id string) (*model.Invitation, error)
	ListPendingForEmail(ctx context.Context, email string, now time.Time) ([]*model.Invitation, error)
	ListByProject(ctx context.Context, projectID string) ([]*model.Invitation, error)
	AcceptInvitation(ctx context.Context, id, userID string, now time.Time, evt *outbox.Event) error
	RejectInvitation(ctx context.Context, id string, now time.Time, evt *outbox.Event) error
	DeleteExpiredInvitations(ctx context.Context, before time.Time) (int64, error)
}

type SessionStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Clock 测试中可替换
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

// storeErr 把存储层哨兵错误映射为 apperr
func storeErr(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(entity)
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict(entity + " already exists")
	case errors.Is(err, repository.ErrStale):
		return apperr.AlreadyProcessed(entity + " was modified concurrently")
	default:
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		return apperr.Internal(err)
	}
}
