package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type InvitationPurger interface {
	PurgeExpired(ctx context.Context, grace time.Duration) (int64, error)
}

// InvitationPurgeJob 删除过期超过 grace 的 pending 邀请；读取时的惰性过期判断不依赖它
type InvitationPurgeJob struct {
	purger InvitationPurger
	grace  time.Duration
	cron   string
	logger *zap.Logger
}

func NewInvitationPurgeJob(purger InvitationPurger, grace time.Duration, cron string, logger *zap.Logger) *InvitationPurgeJob {
	return &InvitationPurgeJob{purger: purger, grace: grace, cron: cron, logger: logger}
}

func (j *InvitationPurgeJob) Name() string { return "invitation_purge" }

func (j *InvitationPurgeJob) Schedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

func (j *InvitationPurgeJob) Execute(ctx context.Context) {
	n, err := j.purger.PurgeExpired(ctx, j.grace)
	if err != nil {
		j.logger.Error("Invitation purge failed", zap.Error(err))
		return
	}
	j.logger.Info("Invitation purge completed", zap.Int64("deleted", n))
}

type OutboxPurger interface {
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

// OutboxPurgeJob 清理已发送超过 retention 的 outbox 事件
type OutboxPurgeJob struct {
	store     OutboxPurger
	retention time.Duration
	cron      string
	now       func() time.Time
	logger    *zap.Logger
}

func NewOutboxPurgeJob(store OutboxPurger, retention time.Duration, cron string, logger *zap.Logger) *OutboxPurgeJob {
	return &OutboxPurgeJob{store: store, retention: retention, cron: cron, now: time.Now, logger: logger}
}

func (j *OutboxPurgeJob) Name() string { return "outbox_purge" }

func (j *OutboxPurgeJob) Schedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

func (j *OutboxPurgeJob) Execute(ctx context.Context) {
	n, err := j.store.PurgeSent(ctx, j.now().Add(-j.retention))
	if err != nil {
		j.logger.Error("Outbox purge failed", zap.Error(err))
		return
	}
	j.logger.Info("Outbox purge completed", zap.Int64("deleted", n))
}
