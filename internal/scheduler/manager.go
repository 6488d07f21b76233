package scheduler

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job 定时任务
type Job interface {
	Name() string
	Schedule() gocron.JobDefinition
	Execute(ctx context.Context)
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger
}

func NewManager(logger *zap.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{scheduler: s, ctx: ctx, cancel: cancel, logger: logger}, nil
}

// Register 同一任务不会并发执行，上一次未结束时本次顺延
func (m *Manager) Register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.Schedule(),
		gocron.NewTask(func() { job.Execute(m.ctx) }),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.Name(), err)
	}
	m.logger.Info("Scheduled job registered", zap.String("job", job.Name()))
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	m.logger.Info("Scheduler started", zap.Int("jobs", len(m.scheduler.Jobs())))
}

// Stop 取消正在执行的任务并等待其退出
func (m *Manager) Stop() {
	m.cancel()
	if err := m.scheduler.Shutdown(); err != nil {
		m.logger.Error("Failed to shutdown scheduler", zap.Error(err))
		return
	}
	m.logger.Info("Scheduler stopped")
}
