package mq

import (
	"context"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// DLQHeaders 死信消息附带的头
const (
	HeaderOriginalError = "x-original-error"
	HeaderFailedAt      = "x-failed-at"
	HeaderDeadLettered  = "x-dead-lettered-at"
)

// DLQQueueName 每个 routing key 对应一个死信队列
func DLQQueueName(routingKey string) string {
	return routingKey + ".dlq"
}

// PublishToDLQ 原样转发失败的消息体，附上失败原因
func (p *Publisher) PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError, failedAt string) error {
	return p.publish(ctx, DLQExchangeName, routingKey, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         payload,
		Headers: amqp091.Table{
			HeaderOriginalError: originalError,
			HeaderFailedAt:      failedAt,
			HeaderDeadLettered:  time.Now().UTC().Format(time.RFC3339),
		},
	})
}
