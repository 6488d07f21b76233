package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/repository"
	"projecthub/pkg/outbox"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, "test", zap.NewNop()), mr
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *Store, id, email string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Name: id, Email: email, Role: model.RoleGeneral, PasswordHash: "hash-" + id, Active: true, CreatedAt: t0, UpdatedAt: t0}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
	return u
}

func seedProject(t *testing.T, s *Store, id, owner string) *model.Project {
	t.Helper()
	p := &model.Project{ID: id, Title: "Launch", OwnerID: owner, Settings: model.DefaultProjectSettings(), MemberIDs: []string{owner}, CreatedAt: t0, UpdatedAt: t0}
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func newInvitation(id, projectID, email string, created time.Time) *model.Invitation {
	return &model.Invitation{
		ID: id, ProjectID: projectID, InviterID: "owner", InviteeEmail: email,
		Status: model.InvitationPending, CreatedAt: created, ExpiresAt: created.Add(model.InvitationTTL),
	}
}

func TestUsers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@x.com")

	dup := &model.User{ID: "u2", Email: "a@x.com", CreatedAt: t0}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("duplicate email err = %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "a@x.com")
	if err != nil || got.ID != "u1" || got.PasswordHash != "hash-u1" {
		t.Fatalf("GetUserByEmail = %+v, %v", got, err)
	}

	got.Active = false
	got.PasswordHash = ""
	if err := s.UpdateUser(ctx, got); err != nil {
		t.Fatal(err)
	}
	reloaded, _ := s.GetUser(ctx, "u1")
	if reloaded.Active || reloaded.PasswordHash != "hash-u1" {
		t.Fatalf("update lost data: %+v", reloaded)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestProjectMembershipAndCascade(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "p1", "owner")

	inv := newInvitation("i1", "p1", "m@x.com", t0)
	if err := s.CreateInvitation(ctx, inv, t0, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.AcceptInvitation(ctx, "i1", "member", t0.Add(time.Hour), nil); err != nil {
		t.Fatal(err)
	}

	p, err := s.GetProject(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !p.HasMember("member") || len(p.MemberIDs) != 2 {
		t.Fatalf("members = %v", p.MemberIDs)
	}
	listed, _ := s.ListProjectsForUser(ctx, "member")
	if len(listed) != 1 || listed[0].ID != "p1" {
		t.Fatalf("ListProjectsForUser = %v", listed)
	}

	assignee := "member"
	task := &model.Task{ID: "t1", ProjectID: "p1", Title: "x", Status: model.TaskPending, AssigneeID: &assignee, CreatedAt: t0}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	removed, err := s.RemoveMember(ctx, "p1", "member", t0.Add(2*time.Hour))
	if err != nil || !removed {
		t.Fatalf("RemoveMember = %v, %v", removed, err)
	}
	reloaded, _ := s.GetTask(ctx, "t1")
	if reloaded.AssigneeID != nil {
		t.Fatal("removed member still assigned")
	}
	removed, _ = s.RemoveMember(ctx, "p1", "member", t0)
	if removed {
		t.Fatal("second removal reported success")
	}

	if err := s.DeleteProject(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTask(ctx, "t1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("task survived cascade: %v", err)
	}
	if _, err := s.GetInvitation(ctx, "i1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("invitation survived cascade: %v", err)
	}
	if mr.Exists("test:project:p1:members") {
		t.Fatal("member set survived cascade")
	}
}

func TestRemoveMemberIsAtomic(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "p1", "owner")
	if err := s.CreateInvitation(ctx, newInvitation("i1", "p1", "m@x.com", t0), t0, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.AcceptInvitation(ctx, "i1", "member", t0.Add(time.Hour), nil); err != nil {
		t.Fatal(err)
	}

	assignee := "member"
	for _, id := range []string{"t1", "t2"} {
		task := &model.Task{ID: id, ProjectID: "p1", Title: id, Status: model.TaskPending, AssigneeID: &assignee, CreatedAt: t0}
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	// 任务记录损坏时整个移除失败，成员和指派都保持原样
	good, _ := mr.Get("test:task:t1")
	if err := mr.Set("test:task:t2", "{broken"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RemoveMember(ctx, "p1", "member", t0.Add(2*time.Hour)); err == nil {
		t.Fatal("RemoveMember should fail on an unreadable task")
	}
	p, err := s.GetProject(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !p.HasMember("member") {
		t.Fatal("member removed although tasks were not unassigned")
	}
	if got, _ := mr.Get("test:task:t1"); got != good {
		t.Fatalf("t1 rewritten: %s", got)
	}
}

func TestCreateInvitationRejectsDuplicatePending(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "p1", "owner")

	if err := s.CreateInvitation(ctx, newInvitation("i1", "p1", "a@x.com", t0), t0, nil); err != nil {
		t.Fatal(err)
	}
	err := s.CreateInvitation(ctx, newInvitation("i2", "p1", "a@x.com", t0.Add(time.Minute)), t0.Add(time.Minute), nil)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// 过期之后可以重新邀请
	later := t0.Add(model.InvitationTTL + time.Hour)
	if err := s.CreateInvitation(ctx, newInvitation("i3", "p1", "a@x.com", later), later, nil); err != nil {
		t.Fatalf("re-invite after expiry: %v", err)
	}

	pending, _ := s.ListPendingForEmail(ctx, "a@x.com", later)
	if len(pending) != 1 || pending[0].ID != "i3" {
		t.Fatalf("pending = %v", pending)
	}
}

func TestAcceptInvitationWritesOutboxAndIsSingleUse(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "p1", "owner")
	if err := s.CreateInvitation(ctx, newInvitation("i1", "p1", "a@x.com", t0), t0, nil); err != nil {
		t.Fatal(err)
	}

	evt, _ := outbox.NewEvent("invitation", "i1", "invitation.accepted", map[string]string{"k": "v"}, t0)
	if err := s.AcceptInvitation(ctx, "i1", "u-a", t0.Add(time.Hour), evt); err != nil {
		t.Fatal(err)
	}
	if err := s.AcceptInvitation(ctx, "i1", "u-a", t0.Add(2*time.Hour), nil); !errors.Is(err, repository.ErrStale) {
		t.Fatalf("second accept err = %v", err)
	}

	inv, _ := s.GetInvitation(ctx, "i1")
	if inv.Status != model.InvitationAccepted || inv.RespondedAt == nil {
		t.Fatalf("invitation = %+v", inv)
	}

	pending, err := s.GetPendingEvents(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != evt.ID {
		t.Fatalf("pending events = %v, %v", pending, err)
	}
}

func TestRejectExpiredInvitationIsStale(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "p1", "owner")
	_ = s.CreateInvitation(ctx, newInvitation("i1", "p1", "a@x.com", t0), t0, nil)

	err := s.RejectInvitation(ctx, "i1", t0.Add(model.InvitationTTL+time.Second), nil)
	if !errors.Is(err, repository.ErrStale) {
		t.Fatalf("err = %v", err)
	}
	if err := s.RejectInvitation(ctx, "missing", t0, nil); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestDeleteExpiredInvitations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "p1", "owner")
	_ = s.CreateInvitation(ctx, newInvitation("old", "p1", "a@x.com", t0), t0, nil)
	fresh := t0.Add(10 * 24 * time.Hour)
	_ = s.CreateInvitation(ctx, newInvitation("new", "p1", "b@x.com", fresh), fresh, nil)

	n, err := s.DeleteExpiredInvitations(ctx, fresh)
	if err != nil || n != 1 {
		t.Fatalf("deleted = %d, %v", n, err)
	}
	if _, err := s.GetInvitation(ctx, "old"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatal("expired invitation not deleted")
	}
	if _, err := s.GetInvitation(ctx, "new"); err != nil {
		t.Fatal("fresh invitation deleted")
	}
}

func TestDeleteMilestoneClearsTaskReference(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "p1", "owner")

	m := &model.Milestone{ID: "m1", ProjectID: "p1", Title: "Beta", CreatedAt: t0}
	_ = s.CreateMilestone(ctx, m)
	mid := "m1"
	_ = s.CreateTask(ctx, &model.Task{ID: "t1", ProjectID: "p1", MilestoneID: &mid, CreatedAt: t0})
	_ = s.CreateTask(ctx, &model.Task{ID: "t2", ProjectID: "p1", CreatedAt: t0.Add(time.Second)})

	filtered, _ := s.ListTasks(ctx, "p1", repository.TaskFilter{MilestoneID: "m1"})
	if len(filtered) != 1 || filtered[0].ID != "t1" {
		t.Fatalf("filter by milestone = %v", filtered)
	}

	if err := s.DeleteMilestone(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	task, _ := s.GetTask(ctx, "t1")
	if task.MilestoneID != nil {
		t.Fatal("milestone reference not cleared")
	}
	all, _ := s.ListTasks(ctx, "p1", repository.TaskFilter{})
	if len(all) != 2 || all[0].ID != "t2" {
		t.Fatalf("ListTasks order = %v", all)
	}
}

func TestOutboxTransitions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	evt, _ := outbox.NewEvent("invitation", "i1", "invitation.created", map[string]string{}, time.Now().Add(-time.Minute))
	if _, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return s.appendEvent(ctx, pipe, evt)
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkAsFailed(ctx, evt.ID, 1); err != nil {
		t.Fatal(err)
	}
	failed, _ := s.GetFailedEvents(ctx, 10)
	if len(failed) != 1 || failed[0].RetryCount != 1 {
		t.Fatalf("failed = %v", failed)
	}
	if pending, _ := s.GetPendingEvents(ctx, 10); len(pending) != 0 {
		t.Fatalf("failed event still pending: %v", pending)
	}

	if err := s.ReplayEvent(ctx, evt.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkAsSent(ctx, evt.ID); err != nil {
		t.Fatal(err)
	}
	n, err := s.PurgeSent(ctx, time.Now().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("PurgeSent = %d, %v", n, err)
	}
	if _, err := s.GetEventByID(ctx, evt.ID); !errors.Is(err, outbox.ErrEventNotFound) {
		t.Fatalf("purged event err = %v", err)
	}
}

func TestSessionRevocation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if revoked, _ := s.IsRevoked(ctx, "jti-1"); !revoked {
		t.Fatal("jti-1 should be revoked")
	}
	_ = s.Revoke(ctx, "jti-2", time.Now().Add(-time.Hour))
	if revoked, _ := s.IsRevoked(ctx, "jti-2"); revoked {
		t.Fatal("already expired token should not be stored")
	}
}
