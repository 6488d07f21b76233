package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"projecthub/pkg/config"
	"projecthub/pkg/otel"
	"projecthub/pkg/trace"
)

var errPublisherClosed = errors.New("publisher connection closed")

// Publisher 单连接单 channel，发布时加锁串行化
type Publisher struct {
	conn *amqp091.Connection
	mu   sync.Mutex
	ch   *amqp091.Channel
}

func NewPublisher(cfg config.MQConfig, role string) (*Publisher, error) {
	conn, err := Dial(cfg, role)
	if err != nil {
		return nil, err
	}
	ch, err := openChannel(conn)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected 给就绪检查使用
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.ch != nil && !p.conn.IsClosed()
}

// PublishWithContext 以 JSON 发布事件，trace_id 和 W3C trace context 写进消息头
func (p *Publisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", routingKey, err)
	}

	ctx, span := otel.MQPublishSpan(ctx, routingKey, ExchangeName)
	defer span.End()

	headers := amqp091.Table{}
	if id := trace.FromContext(ctx); id != "" {
		headers[trace.Header] = id
	}
	otel.GetTextMapPropagator().Inject(ctx, otel.NewMQHeaderCarrier(headers))

	err = p.publish(ctx, ExchangeName, routingKey, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
		Headers:      headers,
	})
	otel.Fail(span, err)
	return err
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, msg amqp091.Publishing) error {
	if !p.IsConnected() {
		return errPublisherClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish %s/%s: %w", exchange, routingKey, err)
	}
	return nil
}
