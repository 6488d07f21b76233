package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"projecthub/internal/model"
)

// 两个存储适配器共用的哨兵错误，service 层据此映射为 apperr
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflicts with existing data")
	// ErrStale 条件写入失败：记录已被并发修改
	ErrStale = errors.New("record changed concurrently")
)

// TaskFilter 项目任务列表的可选过滤条件，空值表示不过滤
type TaskFilter struct {
	Status      model.TaskStatus
	AssigneeID  string
	MilestoneID string
}

// Match 内存过滤用，与 SQL 条件保持一致
func (f TaskFilter) Match(t *model.Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AssigneeID != "" && !t.IsAssignedTo(f.AssigneeID) {
		return false
	}
	if f.MilestoneID != "" && (t.MilestoneID == nil || *t.MilestoneID != f.MilestoneID) {
		return false
	}
	return true
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
