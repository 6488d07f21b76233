package otel

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// DB 在 "db.<operation>" span 里执行 fn。
// 没查到行不算失败，交给调用方转成 NotFound。
func DB(ctx context.Context, operation, statement string, fn func(context.Context) error) error {
	attrs := []attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		semconv.DBOperationKey.String(operation),
	}
	if statement != "" {
		attrs = append(attrs, semconv.DBStatementKey.String(statement))
	}
	ctx, span := Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	err := fn(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetAttributes(attribute.Bool("db.no_rows", true))
		return err
	}
	if err != nil {
		Fail(span, err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
