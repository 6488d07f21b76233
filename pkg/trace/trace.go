// Package trace 维护贯穿 HTTP、MQ 和日志的业务 trace_id
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// Header 在 HTTP 请求和 MQ 消息头里传递 trace_id
const Header = "X-Trace-ID"

const maxLen = 64

type ctxKey struct{}

// New 返回 32 位十六进制 ID，和 W3C trace-id 同格式
func New() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Valid 上游传入的 ID 只接受不超过 64 位的字母数字、'-' 和 '_'
func Valid(id string) bool {
	if id == "" || len(id) > maxLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// FromContext 优先取显式设置的 trace_id，没有时退回当前 span 的 trace-id
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	if sc := oteltrace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// Ensure 保证 ctx 上带有 trace_id，返回新的 ctx 和 ID
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return WithContext(ctx, id), id
	}
	id := New()
	return WithContext(ctx, id), id
}
