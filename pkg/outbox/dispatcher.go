package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"projecthub/pkg/metrics"
	"projecthub/pkg/trace"
)

const (
	defaultMaxRetries = 5
	defaultInterval   = time.Second
	defaultBatchSize  = 100
)

// sender 发布一条事件并回写状态，dispatcher 和 replay 共用
type sender struct {
	store      Store
	publisher  Publisher
	maxRetries int
}

// send 发布失败时记一次失败（可能转为 failed），成功时标记 sent
func (s sender) send(ctx context.Context, e *Event) error {
	ctx = withPayloadTrace(ctx, e.Payload)
	if err := s.publisher.PublishWithContext(ctx, e.RoutingKey, e.Payload); err != nil {
		metrics.IncrementOutboxDispatch("error")
		pubErr := fmt.Errorf("publish %s: %w", e.RoutingKey, err)
		if markErr := s.store.MarkAsFailed(ctx, e.ID, s.maxRetries); markErr != nil {
			return fmt.Errorf("%w (mark failed: %v)", pubErr, markErr)
		}
		return pubErr
	}
	metrics.IncrementOutboxDispatch("sent")
	// 标记失败时下一轮会重复投递，消费端按事件 ID 去重
	if err := s.store.MarkAsSent(ctx, e.ID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// withPayloadTrace 事件写入时的 trace_id 存在 payload 里，投递时恢复
func withPayloadTrace(ctx context.Context, payload json.RawMessage) context.Context {
	var probe struct {
		TraceID string `json:"trace_id"`
	}
	if json.Unmarshal(payload, &probe) == nil && probe.TraceID != "" {
		return trace.WithContext(ctx, probe.TraceID)
	}
	return ctx
}

type DispatcherOption func(*Dispatcher)

// 非正数保持默认值
func WithMaxRetries(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxRetries = n
		}
	}
}

func WithInterval(v time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if v > 0 {
			d.interval = v
		}
	}
}

func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// Dispatcher 轮询 outbox，把到期事件发布到 MQ
type Dispatcher struct {
	sender
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewDispatcher(store Store, publisher Publisher, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:    sender{store: store, publisher: publisher, maxRetries: defaultMaxRetries},
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run 阻塞直到 ctx 取消
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Outbox dispatcher running",
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
		zap.Int("max_retries", d.maxRetries),
	)
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopped")
			return
		case <-t.C:
			d.drain(ctx)
		}
	}
}

// drain 批次取满说明还有积压，继续处理直到取不满
func (d *Dispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, fetched := d.RunOnce(ctx)
		if fetched < d.batchSize || n == 0 {
			return
		}
	}
}

// RunOnce 处理一批到期事件，返回成功发布数和取到的事件数
func (d *Dispatcher) RunOnce(ctx context.Context) (sent, fetched int) {
	events, err := d.store.GetPendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Outbox fetch failed", zap.Error(err))
		return 0, 0
	}
	for _, e := range events {
		log := d.logger.With(zap.String("event_id", e.ID), zap.String("routing_key", e.RoutingKey))
		if err := d.send(ctx, e); err != nil {
			log.Error("Outbox dispatch failed", zap.Int("retry_count", e.RetryCount), zap.Error(err))
			continue
		}
		sent++
		log.Debug("Outbox event published")
	}
	return sent, len(events)
}
