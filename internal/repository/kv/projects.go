package kv

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"projecthub/internal/model"
)

func (s *Store) projectKey(id string) string        { return s.key("project", id) }
func (s *Store) membersKey(projectID string) string { return s.key("project", projectID, "members") }
func (s *Store) userProjectsKey(userID string) string {
	return s.key("user", userID, "projects")
}

// 成员集合单独存放，项目 JSON 中不保存 MemberIDs
func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	stored := *p
	stored.MemberIDs = nil

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := setJSON(ctx, pipe, s.projectKey(p.ID), stored); err != nil {
			return err
		}
		for i, memberID := range p.MemberIDs {
			// 同一时刻加入的成员按顺序错开分值
			pipe.ZAddNX(ctx, s.membersKey(p.ID), redis.Z{Score: score(p.CreatedAt) + float64(i), Member: memberID})
			pipe.SAdd(ctx, s.userProjectsKey(memberID), p.ID)
		}
		return nil
	})
	return err
}

func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	if err := getJSON(ctx, s.rdb, s.projectKey(id), &p); err != nil {
		return nil, err
	}
	members, err := s.rdb.ZRange(ctx, s.membersKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	p.MemberIDs = members
	return &p, nil
}

func (s *Store) ListProjectsForUser(ctx context.Context, userID string) ([]*model.Project, error) {
	ids, err := s.rdb.SMembers(ctx, s.userProjectsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	projects := make([]*model.Project, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetProject(ctx, id)
		if err != nil {
			// 索引里残留的已删除项目
			continue
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) })
	return projects, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *model.Project) error {
	var current model.Project
	if err := getJSON(ctx, s.rdb, s.projectKey(p.ID), &current); err != nil {
		return err
	}
	stored := *p
	stored.MemberIDs = nil
	stored.OwnerID = current.OwnerID
	stored.CreatedAt = current.CreatedAt

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return setJSON(ctx, pipe, s.projectKey(p.ID), stored)
	})
	return err
}

// DeleteProject 级联删除成员、任务、里程碑、邀请
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	members, err := s.rdb.ZRange(ctx, s.membersKey(id), 0, -1).Result()
	if err != nil {
		return err
	}
	taskIDs, err := s.rdb.ZRange(ctx, s.projectTasksKey(id), 0, -1).Result()
	if err != nil {
		return err
	}
	milestoneIDs, err := s.rdb.ZRange(ctx, s.projectMilestonesKey(id), 0, -1).Result()
	if err != nil {
		return err
	}
	invitations, err := s.ListByProject(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.projectKey(id), s.membersKey(id), s.projectTasksKey(id),
			s.projectMilestonesKey(id), s.projectInvitationsKey(id))
		for _, m := range members {
			pipe.SRem(ctx, s.userProjectsKey(m), id)
		}
		for _, t := range taskIDs {
			pipe.Del(ctx, s.taskKey(t))
		}
		for _, m := range milestoneIDs {
			pipe.Del(ctx, s.milestoneKey(m))
		}
		for _, inv := range invitations {
			pipe.Del(ctx, s.invitationKey(inv.ID))
			pipe.ZRem(ctx, s.emailInvitationsKey(inv.InviteeEmail), inv.ID)
			pipe.ZRem(ctx, s.invitationExpiryKey(), inv.ID)
		}
		return nil
	})
	if err == nil {
		s.logger.Debug("Project deleted", zap.String("project_id", id), zap.Int("tasks", len(taskIDs)))
	}
	return err
}

// RemoveMember 非成员返回 false；移除成员与清空其任务指派在同一个事务里提交
func (s *Store) RemoveMember(ctx context.Context, projectID, userID string, now time.Time) (bool, error) {
	membersKey := s.membersKey(projectID)
	var removed bool
	err := s.watch(ctx, func(tx *redis.Tx) error {
		removed = false
		if err := tx.ZScore(ctx, membersKey, userID).Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}

		tasks, err := s.ListTasks(ctx, projectID, taskFilterAssignee(userID))
		if err != nil {
			return err
		}
		if len(tasks) > 0 {
			keys := make([]string, len(tasks))
			for i, t := range tasks {
				keys[i] = s.taskKey(t.ID)
			}
			if err := tx.Watch(ctx, keys...).Err(); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, membersKey, userID)
			pipe.SRem(ctx, s.userProjectsKey(userID), projectID)
			for _, t := range tasks {
				t.AssigneeID = nil
				t.UpdatedAt = now
				if err := setJSON(ctx, pipe, s.taskKey(t.ID), t); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, membersKey, s.projectTasksKey(projectID))
	return removed, err
}
