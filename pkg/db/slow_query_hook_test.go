package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOperation(t *testing.T) {
	tests := map[string]string{
		"  select * from users": "SELECT",
		"\n\tINSERT INTO tasks":  "INSERT",
		"with x as (select 1)":  "CTE",
		"":                      "unknown",
	}
	for sql, want := range tests {
		if got := Operation(sql); got != want {
			t.Errorf("Operation(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestSlowQueryTracerLogsOnlySlowQueries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(zap.New(core), 10*time.Millisecond)

	fast := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tracer.TraceQueryEnd(fast, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})
	if logs.Len() != 0 {
		t.Fatalf("fast query logged: %d entries", logs.Len())
	}

	slow := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "UPDATE tasks SET x = 1"})
	time.Sleep(20 * time.Millisecond)
	tracer.TraceQueryEnd(slow, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("UPDATE 1")})
	if logs.Len() != 1 {
		t.Fatalf("slow query entries = %d, want 1", logs.Len())
	}
	if logs.All()[0].ContextMap()["sql"] != "UPDATE tasks SET x = 1" {
		t.Errorf("unexpected sql field: %v", logs.All()[0].ContextMap())
	}
}
