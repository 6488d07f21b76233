package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func mqSpan(ctx context.Context, kind trace.SpanKind, op, routingKey, destination, destKind string) (context.Context, trace.Span) {
	return Start(ctx, "mq."+op+" "+routingKey,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.operation", op),
			attribute.String("messaging.destination", destination),
			attribute.String("messaging.destination_kind", destKind),
			attribute.String("messaging.rabbitmq.routing_key", routingKey),
		),
	)
}

func MQPublishSpan(ctx context.Context, routingKey, exchange string) (context.Context, trace.Span) {
	return mqSpan(ctx, trace.SpanKindProducer, "publish", routingKey, exchange, "exchange")
}

// MQConsumeSpan ctx 应该已经从消息头里提取过 trace context
func MQConsumeSpan(ctx context.Context, routingKey, queue string) (context.Context, trace.Span) {
	return mqSpan(ctx, trace.SpanKindConsumer, "consume", routingKey, queue, "queue")
}

// MQHeaderCarrier 让 propagator 读写 AMQP 消息头，只认字符串值
type MQHeaderCarrier map[string]any

func NewMQHeaderCarrier(headers map[string]any) MQHeaderCarrier {
	if headers == nil {
		return MQHeaderCarrier{}
	}
	return MQHeaderCarrier(headers)
}

func (c MQHeaderCarrier) Get(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c MQHeaderCarrier) Set(key, value string) { c[key] = value }

func (c MQHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
