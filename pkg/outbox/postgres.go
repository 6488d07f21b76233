package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"projecthub/pkg/otel"
)

// 列顺序和 Event 字段顺序一致，按位置扫描
const eventColumns = `id, aggregate_type, aggregate_id, routing_key, payload, status,
	retry_count, next_retry_at, created_at, updated_at`

// claimLease 被领取的事件在这段时间内对其他 dispatcher 不可见
const claimLease = 30 * time.Second

// Repository outbox_events 表
type Repository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, now: time.Now}
}

// InsertEvent 与业务写入共用 tx，保证事件和状态变更同时提交
func (r *Repository) InsertEvent(ctx context.Context, tx pgx.Tx, e *Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, 0, NULL, $7, $7)`,
		e.ID, e.AggregateType, e.AggregateID, e.RoutingKey, e.Payload, e.Status, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event %s: %w", e.ID, err)
	}
	return nil
}

// GetPendingEvents 用 SKIP LOCKED 领取一批到期事件并顺延 next_retry_at，
// 多个实例同时运行 dispatcher 时不会拿到同一条
func (r *Repository) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	var events []*Event
	err := otel.DB(ctx, "outbox.claim", "", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
			now := r.now()
			rows, err := tx.Query(ctx, `SELECT `+eventColumns+` FROM outbox_events
				WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= $1)
				ORDER BY created_at
				LIMIT $2
				FOR UPDATE SKIP LOCKED`, now, limit)
			if err != nil {
				return err
			}
			events, err = collectEvents(rows)
			if err != nil || len(events) == 0 {
				return err
			}

			ids := make([]string, len(events))
			for i, e := range events {
				ids[i] = e.ID
			}
			_, err = tx.Exec(ctx, `UPDATE outbox_events SET next_retry_at = $1 WHERE id = ANY($2)`,
				now.Add(claimLease), ids)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("claim pending events: %w", err)
	}
	return events, nil
}

// GetFailedEvents 最近失败的在前
func (r *Repository) GetFailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM outbox_events
		WHERE status = 'failed'
		ORDER BY updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed events: %w", err)
	}
	return collectEvents(rows)
}

func (r *Repository) GetEventByID(ctx context.Context, eventID string) (*Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM outbox_events WHERE id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[Event])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event %s: %w", eventID, err)
	}
	return e, nil
}

func collectEvents(rows pgx.Rows) ([]*Event, error) {
	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[Event])
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkAsSent(ctx context.Context, eventID string) error {
	return r.setStatus(ctx, eventID, `UPDATE outbox_events
		SET status = 'sent', next_retry_at = NULL, updated_at = $2
		WHERE id = $1`)
}

// MarkAsFailed 锁住该行再计算下一次重试时间
func (r *Repository) MarkAsFailed(ctx context.Context, eventID string, maxRetries int) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var attempts int
		err := tx.QueryRow(ctx, `SELECT retry_count FROM outbox_events WHERE id = $1 FOR UPDATE`, eventID).Scan(&attempts)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		if err != nil {
			return err
		}

		attempts++
		now := r.now()
		status, next := NextAttempt(attempts, maxRetries, now)
		_, err = tx.Exec(ctx, `UPDATE outbox_events
			SET status = $2, retry_count = $3, next_retry_at = $4, updated_at = $5
			WHERE id = $1`, eventID, status, attempts, next, now)
		return err
	})
	if err != nil && !errors.Is(err, ErrEventNotFound) {
		return fmt.Errorf("mark event %s failed: %w", eventID, err)
	}
	return err
}

// ReplayEvent 清零重试次数并放回 pending，由 dispatcher 下一轮投递
func (r *Repository) ReplayEvent(ctx context.Context, eventID string) error {
	return r.setStatus(ctx, eventID, `UPDATE outbox_events
		SET status = 'pending', retry_count = 0, next_retry_at = NULL, updated_at = $2
		WHERE id = $1`)
}

func (r *Repository) setStatus(ctx context.Context, eventID, stmt string) error {
	tag, err := r.db.Exec(ctx, stmt, eventID, r.now())
	if err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// PurgeSent 删除 before 之前已发送的事件
func (r *Repository) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM outbox_events WHERE status = 'sent' AND updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge sent events: %w", err)
	}
	return tag.RowsAffected(), nil
}
