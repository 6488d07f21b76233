package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/otel"
)

const userColumns = `id, name, email, role, password_hash, active, created_at, updated_at`

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// CreateUser 邮箱重复返回 ErrConflict
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	const stmt = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	err := otel.DB(ctx, "users.insert", stmt, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, stmt, u.ID, u.Name, u.Email, u.Role, u.PasswordHash, u.Active, u.CreatedAt, u.UpdatedAt)
		return err
	})
	switch {
	case isUniqueViolation(err):
		return ErrConflict
	case err != nil:
		r.logger.Error("Insert user failed", zap.Error(err))
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetUserByEmail email 需已规范化为小写
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", email)
}

// column 只会是 id 或 email 两个常量
func (r *UserRepository) getBy(ctx context.Context, column, value string) (*model.User, error) {
	stmt := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	var u *model.User
	err := otel.DB(ctx, "users.get_by_"+column, stmt, func(ctx context.Context) error {
		var err error
		u, err = one(r.db.QueryRow(ctx, stmt, value), scanUser)
		return err
	})
	return u, err
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]*model.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
}

// GetUsers 按 id 批量读取，不存在的 id 被忽略
func (r *UserRepository) GetUsers(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY created_at ASC`, ids)
}

func (r *UserRepository) list(ctx context.Context, stmt string, args ...any) ([]*model.User, error) {
	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return collect(rows, scanUser)
}

// UpdateUser id 和 email 不可修改
func (r *UserRepository) UpdateUser(ctx context.Context, u *model.User) error {
	return affected(r.db.Exec(ctx, `UPDATE users
		SET name = $2, role = $3, active = $4, updated_at = $5
		WHERE id = $1`, u.ID, u.Name, u.Role, u.Active, u.UpdatedAt))
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := new(model.User)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}
