package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/repository/kv"
	"projecthub/pkg/apperr"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeClock 可前进的测试时钟
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type env struct {
	store       *kv.Store
	clock       *fakeClock
	projects    *ProjectService
	tasks       *TaskService
	milestones  *MilestoneService
	invitations *InvitationService
	auth        *AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := kv.NewStore(rdb, "svc", zap.NewNop())
	clock := &fakeClock{now: t0}
	logger := zap.NewNop()
	return &env{
		store:       store,
		clock:       clock,
		projects:    NewProjectService(store, store, clock.Now, logger),
		tasks:       NewTaskService(store, store, store, clock.Now, logger),
		milestones:  NewMilestoneService(store, store, clock.Now),
		invitations: NewInvitationService(store, store, store, clock.Now, logger),
		auth:        NewAuthService(store, store, "test-secret", 7*24*time.Hour, clock.Now, logger),
	}
}

func (e *env) user(t *testing.T, id, email string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Name: id, Email: email, Role: model.RoleGeneral, Active: true, CreatedAt: t0, UpdatedAt: t0}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
	return u
}

func (e *env) project(t *testing.T, owner *model.User) *model.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), owner, CreateProjectInput{Title: "Launch"})
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}
	return p
}

// join 通过邀请流程把 member 加入项目
func (e *env) join(t *testing.T, owner, member *model.User, projectID string) {
	t.Helper()
	ctx := context.Background()
	inv, err := e.invitations.Create(ctx, owner, projectID, member.Email)
	if err != nil {
		t.Fatalf("invite %s: %v", member.Email, err)
	}
	if _, err := e.invitations.Accept(ctx, member, inv.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("error kind = %q (%v), want %q", got, err, kind)
	}
}

func ptr[T any](v T) *T { return &v }
