package otel

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

type httpInstruments struct {
	duration metric.Float64Histogram
	size     metric.Int64Histogram
}

// 未初始化时为零值，record 会跳过
var httpMetrics httpInstruments

func initHTTPMetrics(meter metric.Meter) error {
	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP server request duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return fmt.Errorf("http duration histogram: %w", err)
	}
	size, err := meter.Int64Histogram("http.server.response.size",
		metric.WithDescription("HTTP server response body size"),
		metric.WithUnit("By"))
	if err != nil {
		return fmt.Errorf("http size histogram: %w", err)
	}
	httpMetrics = httpInstruments{duration: duration, size: size}
	return nil
}

func (m httpInstruments) record(ctx context.Context, elapsed time.Duration, bytes int, attrs ...attribute.KeyValue) {
	opt := metric.WithAttributes(attrs...)
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), opt)
	}
	if m.size != nil && bytes >= 0 {
		m.size.Record(ctx, int64(bytes), opt)
	}
}

func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return "unmatched"
}

// GinMiddleware 为每个请求开一个 server span，并记录耗时和响应大小
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		route := routeOf(c)
		ctx := GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := Start(ctx, req.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.UserAgentOriginal(req.UserAgent()),
			),
		)
		defer span.End()
		c.Request = req.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
		httpMetrics.record(ctx, time.Since(start), c.Writer.Size(),
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCode(status),
		)
	}
}
