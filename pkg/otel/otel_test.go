package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"projecthub/pkg/config"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestDBSpanStatus(t *testing.T) {
	rec := recordSpans(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_ = DB(ctx, "SELECT", "SELECT 1", func(context.Context) error { return nil })
	_ = DB(ctx, "SELECT", "", func(context.Context) error { return pgx.ErrNoRows })
	if err := DB(ctx, "INSERT", "", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("DB should return fn error, got %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("spans = %d", len(spans))
	}
	want := []codes.Code{codes.Ok, codes.Unset, codes.Error}
	for i, s := range spans {
		if s.Status().Code != want[i] {
			t.Errorf("span %d (%s) status = %v, want %v", i, s.Name(), s.Status().Code, want[i])
		}
	}
	if spans[2].Name() != "db.INSERT" {
		t.Errorf("name = %q", spans[2].Name())
	}
}

func TestMQHeaderCarrierRoundTrip(t *testing.T) {
	recordSpans(t)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := MQPublishSpan(context.Background(), "invitation.created", "projecthub.events")
	headers := map[string]any{"x-other": 42}
	GetTextMapPropagator().Inject(ctx, NewMQHeaderCarrier(headers))
	span.End()

	if _, ok := headers["traceparent"].(string); !ok {
		t.Fatalf("traceparent not injected: %v", headers)
	}
	if NewMQHeaderCarrier(headers).Get("x-other") != "" {
		t.Error("non-string header should read as empty")
	}

	got := GetTextMapPropagator().Extract(context.Background(), NewMQHeaderCarrier(headers))
	_, child := MQConsumeSpan(got, "invitation.created", "q")
	defer child.End()
	if child.SpanContext().TraceID() != span.SpanContext().TraceID() {
		t.Fatal("consume span should join the publisher's trace")
	}
	if len(NewMQHeaderCarrier(nil).Keys()) != 0 {
		t.Error("nil headers should yield an empty carrier")
	}
}

func TestGinMiddlewareMarksServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d", len(spans))
	}
	if spans[0].Name() != "GET /ok" || spans[0].Status().Code == codes.Error {
		t.Errorf("ok span = %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("5xx span status = %v", spans[1].Status())
	}
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OtelConfig{}, "test", zap.NewNop())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
