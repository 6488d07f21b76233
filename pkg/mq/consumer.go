package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"projecthub/pkg/config"
	"projecthub/pkg/logger"
	"projecthub/pkg/metrics"
	"projecthub/pkg/otel"
	"projecthub/pkg/trace"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

type Consumer struct {
	channel     *amqp091.Channel
	queue       amqp091.Queue
	routingKey  string
	consumerTag string
	handler     MessageHandler
	conn        *amqp091.Connection
	logger      *zap.Logger
	stopOnce    sync.Once
}

const defaultPrefetch = 10

// NewConsumer 声明 queue 和对应的死信队列，绑定到 routingKey
func NewConsumer(cfg config.MQConfig, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := Dial(cfg, "consumer."+queueName)
	if err != nil {
		return nil, err
	}
	ch, err := openChannel(conn)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if _, err := bindQueue(ch, DLQQueueName(routingKey), routingKey, DLQExchangeName); err != nil {
		return fail(err)
	}
	q, err := bindQueue(ch, queueName, routingKey, ExchangeName)
	if err != nil {
		return fail(err)
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fail(fmt.Errorf("set qos: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.Int("prefetch", prefetch),
	)

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       q,
		routingKey:  routingKey,
		consumerTag: "worker." + queueName,
		logger:      logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// IsConnected 连接是否仍然可用
func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop 停止投递，正在处理的消息会处理完毕
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		if c.channel != nil {
			if err := c.channel.Cancel(c.consumerTag, false); err != nil {
				c.logger.Warn("Failed to cancel consumer", zap.String("queue", c.queue.Name), zap.Error(err))
			}
		}
	})
}

func (c *Consumer) Close() {
	c.Stop()
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
// 返回条件：Stop 之后 deliveries 被关闭
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.consumerTag,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.handle(msg)
	}

	c.logger.Info("Consumer stopped", zap.String("queue", c.queue.Name))
	return nil
}

// handle 每条消息最终都会 ack 或 nack
func (c *Consumer) handle(msg amqp091.Delivery) {
	start := time.Now()
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), otel.NewMQHeaderCarrier(msg.Headers))
	if id, ok := msg.Headers[trace.Header].(string); ok && trace.Valid(id) {
		ctx = trace.WithContext(ctx, id)
	}
	ctx, span := otel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name)
	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)
	defer func() {
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
		span.End()
	}()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Error("Handler panicked", zap.Any("panic", r))
		otel.Fail(span, fmt.Errorf("panic: %v", r))
		// 不重新入队，防止毒消息循环崩溃
		if err := msg.Nack(false, false); err != nil {
			log.Error("Nack after panic failed", zap.Error(err))
		}
	}()

	if err := c.handler(ctx, msg.Body); err != nil {
		log.Error("Handler failed, requeueing", zap.Error(err))
		otel.Fail(span, err)
		if err := msg.Nack(false, true); err != nil {
			log.Error("Nack failed", zap.Error(err))
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Ack failed", zap.Error(err))
	}
}
