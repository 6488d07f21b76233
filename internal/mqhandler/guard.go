package mqhandler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"projecthub/pkg/logger"
	"projecthub/pkg/util"
)

type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventKey string) bool
	Release(ctx context.Context, handler, eventKey string)
}

type RetryCounter interface {
	Incr(ctx context.Context, handler, eventKey string) (int64, error)
	Reset(ctx context.Context, handler, eventKey string) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError, failedAt string) error
}

// Guard 为 handler 提供去重、重试计数和死信投递
//
// 返回 error 时 consumer 会 nack 并重新入队；返回 nil 则 ack。
// 不可重试或超过重试上限的消息进入 DLQ 后 ack。
type Guard struct {
	deduper    Deduper
	retries    RetryCounter
	dlq        DLQPublisher
	maxRetries int64
	now        func() time.Time
	logger     *zap.Logger
}

func NewGuard(deduper Deduper, retries RetryCounter, dlq DLQPublisher, maxRetries int64, logger *zap.Logger) *Guard {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Guard{
		deduper:    deduper,
		retries:    retries,
		dlq:        dlq,
		maxRetries: maxRetries,
		now:        time.Now,
		logger:     logger,
	}
}

func (g *Guard) Run(ctx context.Context, handler, routingKey, eventKey string, raw json.RawMessage, fn func(context.Context) error) error {
	log := logger.WithTrace(ctx, g.logger).With(
		zap.String("handler", handler),
		zap.String("event_key", eventKey),
	)
	if !g.deduper.AcquireOnce(ctx, handler, eventKey) {
		return nil
	}

	err := fn(ctx)
	if err == nil {
		if resetErr := g.retries.Reset(ctx, handler, eventKey); resetErr != nil {
			log.Warn("Failed to reset retry counter", zap.Error(resetErr))
		}
		return nil
	}

	failure := util.Classify(err)
	count, countErr := g.retries.Incr(ctx, handler, eventKey)
	if countErr != nil {
		// Redis 不可用时按第一次失败处理
		log.Warn("Failed to increment retry counter", zap.Error(countErr))
		count = 1
	}
	log = log.With(
		zap.String("error_type", failure.Kind),
		zap.Bool("retryable", failure.Retryable),
		zap.Int64("retry_count", count),
		zap.Error(err),
	)

	if failure.ShouldRetry(count, g.maxRetries) {
		log.Warn("Handler failed, message will be redelivered")
		g.deduper.Release(ctx, handler, eventKey)
		return err
	}

	if dlqErr := g.dlq.PublishToDLQ(ctx, routingKey, raw, err.Error(), g.now().UTC().Format(time.RFC3339)); dlqErr != nil {
		log.Error("Failed to publish to DLQ, message will be redelivered", zap.NamedError("dlq_error", dlqErr))
		g.deduper.Release(ctx, handler, eventKey)
		return dlqErr
	}
	log.Error("Handler failed permanently, message sent to DLQ")
	if resetErr := g.retries.Reset(ctx, handler, eventKey); resetErr != nil {
		log.Warn("Failed to reset retry counter", zap.Error(resetErr))
	}
	return nil
}

// DeadLetter 无法解析的消息直接进入 DLQ，不参与去重
func (g *Guard) DeadLetter(ctx context.Context, routingKey string, raw json.RawMessage, cause error) error {
	if err := g.dlq.PublishToDLQ(ctx, routingKey, raw, cause.Error(), g.now().UTC().Format(time.RFC3339)); err != nil {
		logger.WithTrace(ctx, g.logger).Error("Failed to publish to DLQ", zap.String("routing_key", routingKey), zap.Error(err))
		return err
	}
	logger.WithTrace(ctx, g.logger).Error("Malformed message sent to DLQ",
		zap.String("routing_key", routingKey),
		zap.Error(cause),
	)
	return nil
}
