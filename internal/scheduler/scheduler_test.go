package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeInvitationPurger struct {
	grace time.Duration
	err   error
}

func (f *fakeInvitationPurger) PurgeExpired(_ context.Context, grace time.Duration) (int64, error) {
	f.grace = grace
	return 3, f.err
}

type fakeOutboxPurger struct {
	before time.Time
}

func (f *fakeOutboxPurger) PurgeSent(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 7, nil
}

func TestInvitationPurgeJob(t *testing.T) {
	p := &fakeInvitationPurger{}
	job := NewInvitationPurgeJob(p, 30*24*time.Hour, "0 3 * * *", zap.NewNop())
	job.Execute(context.Background())
	if p.grace != 30*24*time.Hour {
		t.Fatalf("grace = %v", p.grace)
	}

	p.err = errors.New("redis down")
	job.Execute(context.Background())
}

func TestOutboxPurgeJob(t *testing.T) {
	s := &fakeOutboxPurger{}
	job := NewOutboxPurgeJob(s, 7*24*time.Hour, "30 3 * * *", zap.NewNop())
	now := time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	job.Execute(context.Background())
	if want := now.Add(-7 * 24 * time.Hour); !s.before.Equal(want) {
		t.Fatalf("before = %v, want %v", s.before, want)
	}
}

func TestManagerRegister(t *testing.T) {
	m, err := NewManager(zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Stop()

	if err := m.Register(NewInvitationPurgeJob(&fakeInvitationPurger{}, time.Hour, "0 3 * * *", zap.NewNop())); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(NewOutboxPurgeJob(&fakeOutboxPurger{}, time.Hour, "not a cron", zap.NewNop())); err == nil {
		t.Fatal("invalid cron expression should fail registration")
	}
	m.Start()
}
