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
)

// 成员 id 以数组形式随项目一起读出，按加入时间排序
const projectSelect = `SELECT p.id, p.title, p.description, p.owner_id,
		p.allow_member_task_edit, p.allow_member_task_create, p.allow_member_invite,
		p.created_at, p.updated_at,
		COALESCE(ARRAY(SELECT m.user_id FROM project_members m
			WHERE m.project_id = p.id ORDER BY m.joined_at), '{}')
	FROM projects p`

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

// CreateProject 项目行和全部成员关系在一个事务里写入
func (r *ProjectRepository) CreateProject(ctx context.Context, p *model.Project) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(`INSERT INTO projects (id, title, description, owner_id,
				allow_member_task_edit, allow_member_task_create, allow_member_invite,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.Title, p.Description, p.OwnerID,
			p.Settings.AllowMemberTaskEdit, p.Settings.AllowMemberTaskCreate, p.Settings.AllowMemberInvite,
			p.CreatedAt, p.UpdatedAt)
		for _, uid := range p.MemberIDs {
			batch.Queue(`INSERT INTO project_members (project_id, user_id, joined_at)
				VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, p.ID, uid, p.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		r.logger.Error("Insert project failed", zap.String("owner_id", p.OwnerID), zap.Error(err))
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetProject(ctx context.Context, id string) (*model.Project, error) {
	const stmt = projectSelect + ` WHERE p.id = $1`
	var p *model.Project
	err := otel.DB(ctx, "projects.get", stmt, func(ctx context.Context) error {
		var err error
		p, err = one(r.db.QueryRow(ctx, stmt, id), scanProject)
		return err
	})
	return p, err
}

// ListProjectsForUser 用户是 owner 或成员的项目，新建的在前
func (r *ProjectRepository) ListProjectsForUser(ctx context.Context, userID string) ([]*model.Project, error) {
	rows, err := r.db.Query(ctx, projectSelect+`
		WHERE p.owner_id = $1
		   OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = $1)
		ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects for %s: %w", userID, err)
	}
	return collect(rows, scanProject)
}

func (r *ProjectRepository) UpdateProject(ctx context.Context, p *model.Project) error {
	return affected(r.db.Exec(ctx, `UPDATE projects
		SET title = $2, description = $3,
			allow_member_task_edit = $4, allow_member_task_create = $5, allow_member_invite = $6,
			updated_at = $7
		WHERE id = $1`,
		p.ID, p.Title, p.Description,
		p.Settings.AllowMemberTaskEdit, p.Settings.AllowMemberTaskCreate, p.Settings.AllowMemberInvite,
		p.UpdatedAt))
}

// DeleteProject 成员、任务、里程碑和邀请靠外键级联删除
func (r *ProjectRepository) DeleteProject(ctx context.Context, id string) error {
	if err := affected(r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)); err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("Delete project failed", zap.String("project_id", id), zap.Error(err))
		}
		return err
	}
	r.logger.Info("Project deleted", zap.String("project_id", id))
	return nil
}

// RemoveMember 同时清掉该成员在项目内的任务指派，不是成员时返回 false
func (r *ProjectRepository) RemoveMember(ctx context.Context, projectID, userID string, now time.Time) (bool, error) {
	var removed bool
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
		if err != nil || tag.RowsAffected() == 0 {
			return err
		}
		removed = true
		_, err = tx.Exec(ctx, `UPDATE tasks SET assignee_id = NULL, updated_at = $3
			WHERE project_id = $1 AND assignee_id = $2`, projectID, userID, now)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("remove member %s from %s: %w", userID, projectID, err)
	}
	return removed, nil
}

func scanProject(row pgx.Row) (*model.Project, error) {
	p := new(model.Project)
	s := &p.Settings
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.OwnerID,
		&s.AllowMemberTaskEdit, &s.AllowMemberTaskCreate, &s.AllowMemberInvite,
		&p.CreatedAt, &p.UpdatedAt, &p.MemberIDs)
	if err != nil {
		return nil, err
	}
	return p, nil
}
