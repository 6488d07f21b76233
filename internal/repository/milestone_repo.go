package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
)

const milestoneColumns = `id, project_id, title, description, due_date, completed, created_at, updated_at`

type MilestoneRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMilestoneRepository(db *pgxpool.Pool, logger *zap.Logger) *MilestoneRepository {
	return &MilestoneRepository{db: db, logger: logger}
}

func (r *MilestoneRepository) CreateMilestone(ctx context.Context, m *model.Milestone) error {
	_, err := r.db.Exec(ctx, `INSERT INTO milestones (`+milestoneColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ProjectID, m.Title, m.Description, m.DueDate, m.Completed, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		r.logger.Error("Insert milestone failed", zap.String("project_id", m.ProjectID), zap.Error(err))
		return fmt.Errorf("insert milestone: %w", err)
	}
	return nil
}

func (r *MilestoneRepository) GetMilestone(ctx context.Context, id string) (*model.Milestone, error) {
	return one(r.db.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id), scanMilestone)
}

// ListMilestones 有截止日期的在前，按日期升序
func (r *MilestoneRepository) ListMilestones(ctx context.Context, projectID string) ([]*model.Milestone, error) {
	rows, err := r.db.Query(ctx, `SELECT `+milestoneColumns+` FROM milestones
		WHERE project_id = $1
		ORDER BY due_date ASC NULLS LAST, created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return collect(rows, scanMilestone)
}

func (r *MilestoneRepository) UpdateMilestone(ctx context.Context, m *model.Milestone) error {
	return affected(r.db.Exec(ctx, `UPDATE milestones
		SET title = $2, description = $3, due_date = $4, completed = $5, updated_at = $6
		WHERE id = $1`,
		m.ID, m.Title, m.Description, m.DueDate, m.Completed, m.UpdatedAt))
}

// DeleteMilestone 任务上的 milestone_id 由外键 ON DELETE SET NULL 清空
func (r *MilestoneRepository) DeleteMilestone(ctx context.Context, id string) error {
	err := affected(r.db.Exec(ctx, `DELETE FROM milestones WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		r.logger.Error("Delete milestone failed", zap.String("milestone_id", id), zap.Error(err))
	}
	return err
}

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	m := new(model.Milestone)
	err := row.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.DueDate, &m.Completed, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}
