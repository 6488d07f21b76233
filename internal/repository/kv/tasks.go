package kv

import (
	"context"

	"github.com/redis/go-redis/v9"

	"projecthub/internal/model"
	"projecthub/internal/repository"
)

func (s *Store) taskKey(id string) string { return s.key("task", id) }
func (s *Store) projectTasksKey(projectID string) string {
	return s.key("project", projectID, "tasks")
}

func taskFilterAssignee(userID string) repository.TaskFilter {
	return repository.TaskFilter{AssigneeID: userID}
}

func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := setJSON(ctx, pipe, s.taskKey(t.ID), t); err != nil {
			return err
		}
		pipe.ZAdd(ctx, s.projectTasksKey(t.ProjectID), redis.Z{Score: score(t.CreatedAt), Member: t.ID})
		return nil
	})
	return err
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	if err := getJSON(ctx, s.rdb, s.taskKey(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks 最新的在前
func (s *Store) ListTasks(ctx context.Context, projectID string, f repository.TaskFilter) ([]*model.Task, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.projectTasksKey(projectID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.taskKey(id)
	}
	all, err := loadMany[model.Task](ctx, s.rdb, keys)
	if err != nil {
		return nil, err
	}
	tasks := make([]*model.Task, 0, len(all))
	for _, t := range all {
		if f.Match(t) {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	exists, err := s.rdb.Exists(ctx, s.taskKey(t.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return repository.ErrNotFound
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return setJSON(ctx, pipe, s.taskKey(t.ID), t)
	})
	return err
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.taskKey(id))
		pipe.ZRem(ctx, s.projectTasksKey(t.ProjectID), id)
		return nil
	})
	return err
}
