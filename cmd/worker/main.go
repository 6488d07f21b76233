package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"projecthub/config"
	"projecthub/internal/mqhandler"
	"projecthub/internal/notify"
	pkglogger "projecthub/pkg/logger"
	"projecthub/pkg/mq"
	"projecthub/pkg/otel"
	"projecthub/pkg/ratelimit"
	redisclient "projecthub/pkg/redis"
	"projecthub/pkg/util"
)

var version = "dev"

type consumerDef struct {
	queue      string
	routingKey string
	handle     mq.MessageHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := pkglogger.NewLogger(cfg.Log, zap.String("service", "projecthub-worker"))
	defer logger.Sync()
	logger.Info("Starting worker service...", zap.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := otel.Setup(ctx, cfg.Otel, version, logger)
	if err != nil {
		logger.Warn("OpenTelemetry setup incomplete", zap.Error(err))
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Warn("OpenTelemetry shutdown failed", zap.Error(err))
		}
	}()

	// Redis：去重锁、重试计数、SMTP 限流
	rdb, err := redisclient.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	// DLQ 走同一个 publisher
	publisher, err := mq.NewPublisher(cfg.MQ, "worker")
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	guard := mqhandler.NewGuard(
		util.NewDeduper(rdb, cfg.Redis.KeyPrefix, cfg.Worker.DedupTTL, logger),
		util.NewRetryCounter(rdb, cfg.Redis.KeyPrefix, cfg.Worker.DedupTTL),
		publisher,
		cfg.Worker.MaxRetries,
		logger,
	)

	smtp := notify.NewSMTPMailer(cfg.SMTP, logger)
	if !smtp.Configured() {
		logger.Warn("SMTP is not configured, emails will only be logged")
	}
	throttled := notify.ThrottledMailer{
		Mailer:  smtp,
		Limiter: ratelimit.NewRedisRateLimiter(rdb, logger, cfg.Redis.KeyPrefix+":ratelimit:smtp", cfg.Worker.EmailRate, cfg.Worker.EmailBurst),
		Key:     "global",
		Logger:  logger,
	}

	created := mqhandler.NewInvitationCreatedHandler(
		notify.RecordingMailer{Mailer: throttled, Template: "invitation"},
		cfg.Invitation.BaseURL, guard, logger)
	accepted := mqhandler.NewInvitationAcceptedHandler(
		notify.RecordingMailer{Mailer: throttled, Template: "invitation_accepted"},
		guard, logger)
	rejected := mqhandler.NewInvitationRejectedHandler(guard, logger)

	defs := []consumerDef{
		{queue: "invitation.created.email.q", routingKey: mq.RoutingInvitationCreated, handle: created.Handle},
		{queue: "invitation.accepted.email.q", routingKey: mq.RoutingInvitationAccepted, handle: accepted.Handle},
		{queue: "invitation.rejected.audit.q", routingKey: mq.RoutingInvitationRejected, handle: rejected.Handle},
	}

	consumers := make([]*mq.Consumer, 0, len(defs))
	for _, def := range defs {
		logger.Info("Initializing consumer", zap.String("queue", def.queue))
		consumer, err := mq.NewConsumer(cfg.MQ, def.queue, def.routingKey, logger)
		if err != nil {
			logger.Fatal("Failed to init consumer", zap.String("queue", def.queue), zap.Error(err))
		}
		consumer.SetHandler(def.handle)
		consumers = append(consumers, consumer)

		go func(c *mq.Consumer, queue string) {
			if err := c.StartConsuming(); err != nil {
				logger.Error("Consumer stopped", zap.String("queue", queue), zap.Error(err))
				stop()
			}
		}(consumer, def.queue)
	}

	logger.Info("All consumers started, worker is ready to process messages")
	<-ctx.Done()

	logger.Info("Shutting down worker")
	for _, c := range consumers {
		c.Close()
	}
}
