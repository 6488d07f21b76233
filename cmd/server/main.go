package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/config"
	"projecthub/internal/ai"
	"projecthub/internal/handler"
	"projecthub/internal/httpserver"
	"projecthub/internal/repository"
	"projecthub/internal/repository/kv"
	"projecthub/internal/scheduler"
	"projecthub/internal/service"
	"projecthub/pkg/db"
	pkglogger "projecthub/pkg/logger"
	"projecthub/pkg/mq"
	"projecthub/pkg/otel"
	"projecthub/pkg/outbox"
	"projecthub/pkg/ratelimit"
	"projecthub/pkg/rbac"
	redisclient "projecthub/pkg/redis"
)

var version = "dev"

// stores 按 storage.driver 选择的一组存储实现
type stores struct {
	users       service.UserStore
	projects    service.ProjectStore
	tasks       service.TaskStore
	milestones  service.MilestoneStore
	invitations service.InvitationStore
	outbox      outbox.Store
	ping        func(ctx context.Context) error
	close       func()
}

func openStores(ctx context.Context, cfg *config.Config, kvStore *kv.Store, logger *zap.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.StorageRedis {
		return &stores{
			users:       kvStore,
			projects:    kvStore,
			tasks:       kvStore,
			milestones:  kvStore,
			invitations: kvStore,
			outbox:      kvStore,
			ping:        kvStore.Ping,
			close:       func() {},
		}, nil
	}

	pool, err := db.NewConnection(ctx, cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return postgresStores(pool, logger), nil
}

func postgresStores(pool *pgxpool.Pool, logger *zap.Logger) *stores {
	outboxRepo := outbox.NewRepository(pool)
	return &stores{
		users:       repository.NewUserRepository(pool, logger),
		projects:    repository.NewProjectRepository(pool, logger),
		tasks:       repository.NewTaskRepository(pool, logger),
		milestones:  repository.NewMilestoneRepository(pool, logger),
		invitations: repository.NewInvitationRepository(pool, outboxRepo, logger),
		outbox:      outboxRepo,
		ping:        pool.Ping,
		close:       pool.Close,
	}
}

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := pkglogger.NewLogger(cfg.Log, zap.String("service", "projecthub-server"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Tracing + HTTP metrics
	shutdownOtel, err := otel.Setup(ctx, cfg.Otel, version, logger)
	if err != nil {
		logger.Warn("OpenTelemetry setup incomplete", zap.Error(err))
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Warn("OpenTelemetry shutdown failed", zap.Error(err))
		}
	}()

	// 3. Redis：会话吊销、限流；redis 模式下同时是主存储
	rdb, err := redisclient.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()
	kvStore := kv.NewStore(rdb, cfg.Redis.KeyPrefix, logger)

	// 4. Storage
	st, err := openStores(ctx, cfg, kvStore, logger)
	if err != nil {
		logger.Fatal("Storage initialization failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer st.close()
	logger.Info("Storage ready", zap.String("driver", cfg.Storage.Driver))

	// 5. MQ publisher + outbox
	publisher, err := mq.NewPublisher(cfg.MQ, "server")
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	dispatcher := outbox.NewDispatcher(st.outbox, publisher, logger,
		outbox.WithMaxRetries(cfg.Outbox.MaxRetries),
		outbox.WithInterval(cfg.Outbox.Interval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
	)
	go dispatcher.Run(ctx)
	replayService := outbox.NewReplayService(st.outbox, publisher, logger, cfg.Outbox.MaxRetries)

	// 6. Services
	roles := rbac.NewRoles(cfg.Auth.AdminEmails)
	aiClient := ai.NewClient(ai.Options{
		BaseURL: cfg.AI.BaseURL,
		Enabled: cfg.AI.Enabled,
		Timeout: cfg.AI.Timeout,
	}, logger)

	authService := service.NewAuthService(st.users, kvStore, cfg.JWT.Secret, cfg.JWT.TTL, nil, logger)
	projectService := service.NewProjectService(st.projects, st.users, nil, logger)
	taskService := service.NewTaskService(st.projects, st.tasks, st.milestones, nil, logger)
	milestoneService := service.NewMilestoneService(st.projects, st.milestones, nil)
	invitationService := service.NewInvitationService(st.projects, st.users, st.invitations, nil, logger)
	breakdownService := service.NewBreakdownService(st.projects, st.tasks, st.milestones, aiClient, nil, logger)
	userService := service.NewUserService(st.users, roles, nil, logger)

	// 7. Scheduled jobs
	sched, err := scheduler.NewManager(logger)
	if err != nil {
		logger.Fatal("Scheduler initialization failed", zap.Error(err))
	}
	jobs := []scheduler.Job{
		scheduler.NewInvitationPurgeJob(invitationService, cfg.Invitation.PurgeAfter, cfg.Scheduler.InvitationPurgeCron, logger),
		scheduler.NewOutboxPurgeJob(st.outbox, cfg.Outbox.PurgeAfter, cfg.Scheduler.OutboxPurgeCron, logger),
	}
	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			logger.Fatal("Failed to register job", zap.String("job", job.Name()), zap.Error(err))
		}
	}
	sched.Start()
	defer sched.Stop()

	// 8. HTTP
	handlers := httpserver.Handlers{
		Auth:       handler.NewAuthHandler(authService, logger),
		Project:    handler.NewProjectHandler(projectService, taskService, breakdownService, invitationService, logger),
		Milestone:  handler.NewMilestoneHandler(milestoneService, logger),
		Task:       handler.NewTaskHandler(taskService, logger),
		Invitation: handler.NewInvitationHandler(invitationService, logger),
		User:       handler.NewUserHandler(userService, logger),
		Admin:      handler.NewAdminHandler(replayService, logger),
	}
	router := httpserver.NewRouter(handlers, httpserver.Options{
		Resolver:     authService,
		Roles:        roles,
		LoginLimiter: ratelimit.NewRedisRateLimiter(rdb, logger, cfg.Redis.KeyPrefix+":ratelimit:auth", cfg.Auth.RateLimit.Rate, cfg.Auth.RateLimit.Burst),
		Checks: []httpserver.ReadinessCheck{
			{Name: "storage", Check: st.ping},
			{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
			{Name: "mq", Check: func(context.Context) error {
				if !publisher.IsConnected() {
					return errors.New("publisher not connected")
				}
				return nil
			}},
		},
		Logger: logger,
	})

	logger.Info("Starting ProjectHub API", zap.String("version", version), zap.String("port", cfg.Server.Port))
	if err := httpserver.NewServer(cfg.Server, router, logger).Run(ctx); err != nil {
		logger.Error("HTTP server stopped with error", zap.Error(err))
	}
	logger.Info("Server exited")
}
