package service

import (
	"context"
	"slices"
	"testing"
	"time"

	"projecthub/internal/model"
	"projecthub/pkg/apperr"
)

func TestInvitationAcceptFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner", "o@x.com")
	p := e.project(t, owner)

	inv, err := e.invitations.Create(ctx, owner, p.ID, " A@X.com ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inv.Status != model.InvitationPending {
		t.Fatalf("status = %s", inv.Status)
	}
	if inv.InviteeEmail != "a@x.com" {
		t.Fatalf("email not normalized: %q", inv.InviteeEmail)
	}
	if got := inv.ExpiresAt.Sub(inv.CreatedAt); got != 7*24*time.Hour {
		t.Fatalf("expiresAt - createdAt = %v", got)
	}

	a := e.user(t, "a", "a@x.com")
	received, err := e.invitations.ListReceived(ctx, a)
	if err != nil || len(received) != 1 || received[0].ID != inv.ID {
		t.Fatalf("ListReceived = %v, %v", received, err)
	}

	e.clock.Advance(time.Hour)
	accepted, err := e.invitations.Accept(ctx, a, inv.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != model.InvitationAccepted || accepted.RespondedAt == nil {
		t.Fatalf("accepted = %+v", accepted)
	}

	got, err := e.projects.Get(ctx, a, p.ID)
	if err != nil {
		t.Fatalf("member cannot view project: %v", err)
	}
	if !slices.Contains(got.MemberIDs, a.ID) {
		t.Fatalf("memberIds = %v", got.MemberIDs)
	}

	_, err = e.invitations.Accept(ctx, a, inv.ID)
	wantKind(t, err, apperr.KindAlreadyProcessed)

	got, _ = e.projects.Get(ctx, a, p.ID)
	n := 0
	for _, id := range got.MemberIDs {
		if id == a.ID {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("member listed %d times", n)
	}
}

func TestInvitationCreateConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner", "o@x.com")
	member := e.user(t, "m", "m@x.com")
	p := e.project(t, owner)
	e.join(t, owner, member, p.ID)

	if _, err := e.invitations.Create(ctx, owner, p.ID, "a@x.com"); err != nil {
		t.Fatalf("first invite: %v", err)
	}
	_, err := e.invitations.Create(ctx, owner, p.ID, "A@x.com")
	wantKind(t, err, apperr.KindConflict)

	_, err = e.invitations.Create(ctx, owner, p.ID, "m@x.com")
	wantKind(t, err, apperr.KindConflict)

	// 过期后可以再次邀请
	e.clock.Advance(model.InvitationTTL + time.Minute)
	if _, err := e.invitations.Create(ctx, owner, p.ID, "a@x.com"); err != nil {
		t.Fatalf("re-invite after expiry: %v", err)
	}
}

func TestInvitationCreatePermissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner", "o@x.com")
	member := e.user(t, "m", "m@x.com")
	stranger := e.user(t, "s", "s@x.com")
	p := e.project(t, owner)
	e.join(t, owner, member, p.ID)

	_, err := e.invitations.Create(ctx, stranger, p.ID, "a@x.com")
	wantKind(t, err, apperr.KindNotFound)

	_, err = e.invitations.Create(ctx, member, p.ID, "a@x.com")
	wantKind(t, err, apperr.KindPermissionDenied)

	_, err = e.projects.Update(ctx, owner, p.ID, UpdateProjectInput{Settings: &SettingsPatch{AllowMemberInvite: ptr(true)}})
	if err != nil {
		t.Fatalf("Update settings: %v", err)
	}
	if _, err := e.invitations.Create(ctx, member, p.ID, "a@x.com"); err != nil {
		t.Fatalf("member invite after opt-in: %v", err)
	}

	_, err = e.invitations.Create(ctx, owner, p.ID, "not-an-email")
	wantKind(t, err, apperr.KindValidation)
}

func TestInvitationCheckOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner", "o@x.com")
	a := e.user(t, "a", "a@x.com")
	b := e.user(t, "b", "b@x.com")
	p := e.project(t, owner)

	_, err := e.invitations.Accept(ctx, a, "missing")
	wantKind(t, err, apperr.KindNotFound)

	inv, err := e.invitations.Create(ctx, owner, p.ID, a.Email)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = e.invitations.Accept(ctx, b, inv.ID)
	wantKind(t, err, apperr.KindEmailMismatch)
	_, err = e.invitations.Reject(ctx, b, inv.ID)
	wantKind(t, err, apperr.KindEmailMismatch)

	if _, err := e.invitations.Reject(ctx, a, inv.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	// 已处理优先于邮箱不匹配
	_, err = e.invitations.Accept(ctx, b, inv.ID)
	wantKind(t, err, apperr.KindAlreadyProcessed)

	got, err := e.projects.Get(ctx, owner, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.HasMember(a.ID) {
		t.Fatal("reject must not add membership")
	}
}

func TestInvitationExpiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner", "o@x.com")
	a := e.user(t, "a", "a@x.com")
	p := e.project(t, owner)

	inv, err := e.invitations.Create(ctx, owner, p.ID, a.Email)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	e.clock.Advance(model.InvitationTTL + time.Second)

	_, err = e.invitations.Accept(ctx, a, inv.ID)
	wantKind(t, err, apperr.KindExpired)
	_, err = e.invitations.Reject(ctx, a, inv.ID)
	wantKind(t, err, apperr.KindExpired)

	view, err := e.invitations.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !view.Expired || view.Status != model.InvitationPending {
		t.Fatalf("view = %+v", view)
	}
	if view.ProjectTitle != "Launch" || view.InviterName != owner.Name {
		t.Fatalf("view details = %q / %q", view.ProjectTitle, view.InviterName)
	}

	received, err := e.invitations.ListReceived(ctx, a)
	if err != nil || len(received) != 0 {
		t.Fatalf("expired invitation still listed: %v, %v", received, err)
	}

	n, err := e.invitations.PurgeExpired(ctx, 0)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired = %d, %v", n, err)
	}
	_, err = e.invitations.Get(ctx, inv.ID)
	wantKind(t, err, apperr.KindNotFound)
}

func TestListForProject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner", "o@x.com")
	member := e.user(t, "m", "m@x.com")
	p := e.project(t, owner)
	e.join(t, owner, member, p.ID)

	if _, err := e.invitations.Create(ctx, owner, p.ID, "a@x.com"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	invs, err := e.invitations.ListForProject(ctx, owner, p.ID)
	if err != nil || len(invs) != 2 {
		t.Fatalf("ListForProject = %d, %v", len(invs), err)
	}
	_, err = e.invitations.ListForProject(ctx, member, p.ID)
	wantKind(t, err, apperr.KindPermissionDenied)
}
