package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/otel"
)

const taskColumns = `id, project_id, milestone_id, title, description, content, status, priority,
	assignee_id, due_date, estimate, tags, time_spent, success_metrics,
	created_by, created_at, updated_at, completed_at`

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) CreateTask(ctx context.Context, t *model.Task) error {
	content, metrics, err := encodeTaskJSON(t)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		t.ID, t.ProjectID, t.MilestoneID, t.Title, t.Description, content, t.Status, t.Priority,
		t.AssigneeID, t.DueDate, t.Estimate, tagsOrEmpty(t.Tags), t.TimeSpent, metrics,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Insert task failed", zap.String("project_id", t.ProjectID), zap.Error(err))
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	const stmt = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	var t *model.Task
	err := otel.DB(ctx, "tasks.get", stmt, func(ctx context.Context) error {
		var err error
		t, err = one(r.db.QueryRow(ctx, stmt, id), scanTask)
		return err
	})
	return t, err
}

// ListTasks 过滤条件按需拼接为参数化 SQL
func (r *TaskRepository) ListTasks(ctx context.Context, projectID string, f TaskFilter) ([]*model.Task, error) {
	conds := []string{"project_id = $1"}
	args := []any{projectID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+" = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.AssigneeID != "" {
		add("assignee_id", f.AssigneeID)
	}
	if f.MilestoneID != "" {
		add("milestone_id", f.MilestoneID)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks of %s: %w", projectID, err)
	}
	return collect(rows, scanTask)
}

func (r *TaskRepository) UpdateTask(ctx context.Context, t *model.Task) error {
	content, metrics, err := encodeTaskJSON(t)
	if err != nil {
		return err
	}
	return affected(r.db.Exec(ctx, `UPDATE tasks
		SET milestone_id = $2, title = $3, description = $4, content = $5, status = $6, priority = $7,
			assignee_id = $8, due_date = $9, estimate = $10, tags = $11, time_spent = $12,
			success_metrics = $13, updated_at = $14, completed_at = $15
		WHERE id = $1`,
		t.ID, t.MilestoneID, t.Title, t.Description, content, t.Status, t.Priority,
		t.AssigneeID, t.DueDate, t.Estimate, tagsOrEmpty(t.Tags), t.TimeSpent,
		metrics, t.UpdatedAt, t.CompletedAt))
}

func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	return affected(r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id))
}

func encodeTaskJSON(t *model.Task) (content []byte, metrics []byte, err error) {
	if len(t.Content) > 0 {
		if content, err = json.Marshal(t.Content); err != nil {
			return nil, nil, fmt.Errorf("encode task content: %w", err)
		}
	}
	if t.SuccessMetrics != nil {
		if metrics, err = json.Marshal(t.SuccessMetrics); err != nil {
			return nil, nil, fmt.Errorf("encode success metrics: %w", err)
		}
	}
	return content, metrics, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var content, metrics []byte
	t := new(model.Task)
	err := row.Scan(&t.ID, &t.ProjectID, &t.MilestoneID, &t.Title, &t.Description, &content,
		&t.Status, &t.Priority, &t.AssigneeID, &t.DueDate, &t.Estimate, &t.Tags, &t.TimeSpent,
		&metrics, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &t.Content); err != nil {
			return nil, fmt.Errorf("decode task content: %w", err)
		}
	}
	if len(metrics) > 0 {
		t.SuccessMetrics = &model.SuccessMetrics{}
		if err := json.Unmarshal(metrics, t.SuccessMetrics); err != nil {
			return nil, fmt.Errorf("decode success metrics: %w", err)
		}
	}
	return t, nil
}
