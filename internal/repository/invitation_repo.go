package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/otel"
	"projecthub/pkg/outbox"
)

const invitationColumns = `id, project_id, inviter_id, invitee_email, status, created_at, expires_at, responded_at`

type InvitationRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewInvitationRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *InvitationRepository {
	return &InvitationRepository{db: db, outbox: outboxRepo, logger: logger}
}

// CreateInvitation 同一 (project, email) 上的 advisory lock 串行化重复检查与插入；
// 已有 pending 且未过期的邀请时返回 ErrConflict
func (r *InvitationRepository) CreateInvitation(ctx context.Context, inv *model.Invitation, now time.Time, evt *outbox.Event) error {
	return otel.DB(ctx, "TX invitation.create", "", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`,
				inv.ProjectID, inv.InviteeEmail); err != nil {
				return err
			}

			var exists bool
			err := tx.QueryRow(ctx, `
                SELECT EXISTS (
                    SELECT 1 FROM invitations
                    WHERE project_id = $1 AND invitee_email = $2
                      AND status = 'pending' AND expires_at >= $3
                )
            `, inv.ProjectID, inv.InviteeEmail, now).Scan(&exists)
			if err != nil {
				return err
			}
			if exists {
				return ErrConflict
			}

			if _, err := tx.Exec(ctx, `
                INSERT INTO invitations (`+invitationColumns+`)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            `, inv.ID, inv.ProjectID, inv.InviterID, inv.InviteeEmail, inv.Status,
				inv.CreatedAt, inv.ExpiresAt, inv.RespondedAt); err != nil {
				r.logger.Error("Failed to insert invitation", zap.Error(err))
				return err
			}
			return r.appendEvent(ctx, tx, evt)
		})
	})
}

func (r *InvitationRepository) GetInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	return one(r.db.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id), scanInvitation)
}

// ListPendingForEmail pending 且未过期，按创建时间倒序
func (r *InvitationRepository) ListPendingForEmail(ctx context.Context, email string, now time.Time) ([]*model.Invitation, error) {
	return r.query(ctx, `
        SELECT `+invitationColumns+`
        FROM invitations
        WHERE invitee_email = $1 AND status = 'pending' AND expires_at >= $2
        ORDER BY created_at DESC
    `, email, now)
}

func (r *InvitationRepository) ListByProject(ctx context.Context, projectID string) ([]*model.Invitation, error) {
	return r.query(ctx, `
        SELECT `+invitationColumns+`
        FROM invitations
        WHERE project_id = $1
        ORDER BY created_at DESC
    `, projectID)
}

// AcceptInvitation 成员插入（幂等）、状态条件更新、outbox 事件在同一事务提交。
// 条件更新未命中说明已被并发处理，返回 ErrStale 并整体回滚
func (r *InvitationRepository) AcceptInvitation(ctx context.Context, id, userID string, now time.Time, evt *outbox.Event) error {
	err := otel.DB(ctx, "TX invitation.accept", "", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
			var projectID string
			err := tx.QueryRow(ctx, `
                UPDATE invitations
                SET status = 'accepted', responded_at = $2
                WHERE id = $1 AND status = 'pending' AND expires_at >= $2
                RETURNING project_id
            `, id, now).Scan(&projectID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrStale
				}
				return err
			}

			if _, err := tx.Exec(ctx, `
                INSERT INTO project_members (project_id, user_id, joined_at)
                VALUES ($1, $2, $3)
                ON CONFLICT (project_id, user_id) DO NOTHING
            `, projectID, userID, now); err != nil {
				return err
			}
			return r.appendEvent(ctx, tx, evt)
		})
	})
	if err != nil && !errors.Is(err, ErrStale) {
		r.logger.Error("Failed to accept invitation", zap.String("invitation_id", id), zap.Error(err))
	}
	return err
}

func (r *InvitationRepository) RejectInvitation(ctx context.Context, id string, now time.Time, evt *outbox.Event) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE invitations
            SET status = 'rejected', responded_at = $2
            WHERE id = $1 AND status = 'pending' AND expires_at >= $2
        `, id, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStale
		}
		return r.appendEvent(ctx, tx, evt)
	})
}

// DeleteExpiredInvitations 清理 expiresAt 早于 before 的 pending 邀请
func (r *InvitationRepository) DeleteExpiredInvitations(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM invitations WHERE status = 'pending' AND expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *InvitationRepository) appendEvent(ctx context.Context, tx pgx.Tx, evt *outbox.Event) error {
	if evt == nil {
		return nil
	}
	return r.outbox.InsertEvent(ctx, tx, evt)
}

func (r *InvitationRepository) query(ctx context.Context, query string, args ...any) ([]*model.Invitation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invitations: %w", err)
	}
	return collect(rows, scanInvitation)
}

func scanInvitation(row pgx.Row) (*model.Invitation, error) {
	inv := new(model.Invitation)
	err := row.Scan(&inv.ID, &inv.ProjectID, &inv.InviterID, &inv.InviteeEmail,
		&inv.Status, &inv.CreatedAt, &inv.ExpiresAt, &inv.RespondedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}
