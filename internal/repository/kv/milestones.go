package kv

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"

	"projecthub/internal/model"
	"projecthub/internal/repository"
)

func (s *Store) milestoneKey(id string) string { return s.key("milestone", id) }
func (s *Store) projectMilestonesKey(projectID string) string {
	return s.key("project", projectID, "milestones")
}

func (s *Store) CreateMilestone(ctx context.Context, m *model.Milestone) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := setJSON(ctx, pipe, s.milestoneKey(m.ID), m); err != nil {
			return err
		}
		pipe.ZAdd(ctx, s.projectMilestonesKey(m.ProjectID), redis.Z{Score: score(m.CreatedAt), Member: m.ID})
		return nil
	})
	return err
}

func (s *Store) GetMilestone(ctx context.Context, id string) (*model.Milestone, error) {
	var m model.Milestone
	if err := getJSON(ctx, s.rdb, s.milestoneKey(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMilestones 按截止日期排序，无截止日期的排在最后
func (s *Store) ListMilestones(ctx context.Context, projectID string) ([]*model.Milestone, error) {
	ids, err := s.rdb.ZRange(ctx, s.projectMilestonesKey(projectID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.milestoneKey(id)
	}
	milestones, err := loadMany[model.Milestone](ctx, s.rdb, keys)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(milestones, func(i, j int) bool {
		a, b := milestones[i].DueDate, milestones[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return milestones, nil
}

func (s *Store) UpdateMilestone(ctx context.Context, m *model.Milestone) error {
	exists, err := s.rdb.Exists(ctx, s.milestoneKey(m.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return repository.ErrNotFound
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return setJSON(ctx, pipe, s.milestoneKey(m.ID), m)
	})
	return err
}

// DeleteMilestone 引用该里程碑的任务 milestoneId 置空
func (s *Store) DeleteMilestone(ctx context.Context, id string) error {
	m, err := s.GetMilestone(ctx, id)
	if err != nil {
		return err
	}
	tasks, err := s.ListTasks(ctx, m.ProjectID, repository.TaskFilter{MilestoneID: id})
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.milestoneKey(id))
		pipe.ZRem(ctx, s.projectMilestonesKey(m.ProjectID), id)
		for _, t := range tasks {
			t.MilestoneID = nil
			if err := setJSON(ctx, pipe, s.taskKey(t.ID), t); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}
