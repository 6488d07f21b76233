package kv

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"projecthub/internal/model"
	"projecthub/internal/repository"
	"projecthub/pkg/outbox"
)

func (s *Store) invitationKey(id string) string { return s.key("invitation", id) }
func (s *Store) projectInvitationsKey(projectID string) string {
	return s.key("project", projectID, "invitations")
}
func (s *Store) emailInvitationsKey(email string) string {
	return s.key("invitations", "email", email)
}

// invitationExpiryKey pending 邀请按 expiresAt 排序，供清理任务使用
func (s *Store) invitationExpiryKey() string { return s.key("invitations", "expiry") }

// CreateInvitation WATCH 项目邀请索引：并发创建时只有一个事务能提交
func (s *Store) CreateInvitation(ctx context.Context, inv *model.Invitation, now time.Time, evt *outbox.Event) error {
	indexKey := s.projectInvitationsKey(inv.ProjectID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		existing, err := s.listByProject(ctx, tx, inv.ProjectID)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.InviteeEmail == inv.InviteeEmail && other.IsActionable(now) {
				return repository.ErrConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := setJSON(ctx, pipe, s.invitationKey(inv.ID), inv); err != nil {
				return err
			}
			pipe.ZAdd(ctx, indexKey, redis.Z{Score: score(inv.CreatedAt), Member: inv.ID})
			pipe.ZAdd(ctx, s.emailInvitationsKey(inv.InviteeEmail), redis.Z{Score: score(inv.CreatedAt), Member: inv.ID})
			pipe.ZAdd(ctx, s.invitationExpiryKey(), redis.Z{Score: score(inv.ExpiresAt), Member: inv.ID})
			return s.appendEvent(ctx, pipe, evt)
		})
		return err
	}, indexKey)
}

func (s *Store) GetInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	var inv model.Invitation
	if err := getJSON(ctx, s.rdb, s.invitationKey(id), &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) ListPendingForEmail(ctx context.Context, email string, now time.Time) ([]*model.Invitation, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.emailInvitationsKey(email), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	all, err := loadMany[model.Invitation](ctx, s.rdb, s.invitationKeys(ids))
	if err != nil {
		return nil, err
	}
	pending := make([]*model.Invitation, 0, len(all))
	for _, inv := range all {
		if inv.IsActionable(now) {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}

func (s *Store) ListByProject(ctx context.Context, projectID string) ([]*model.Invitation, error) {
	return s.listByProject(ctx, s.rdb, projectID)
}

// listByProject 最新的在前
func (s *Store) listByProject(ctx context.Context, c redis.Cmdable, projectID string) ([]*model.Invitation, error) {
	ids, err := c.ZRevRange(ctx, s.projectInvitationsKey(projectID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return loadMany[model.Invitation](ctx, c, s.invitationKeys(ids))
}

// AcceptInvitation WATCH 邀请记录：状态写入、成员加入、outbox 事件在同一个 MULTI 中提交
func (s *Store) AcceptInvitation(ctx context.Context, id, userID string, now time.Time, evt *outbox.Event) error {
	key := s.invitationKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		var inv model.Invitation
		if err := getJSON(ctx, tx, key, &inv); err != nil {
			return err
		}
		if !inv.IsActionable(now) {
			return repository.ErrStale
		}
		inv.Status = model.InvitationAccepted
		inv.RespondedAt = &now

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := setJSON(ctx, pipe, key, inv); err != nil {
				return err
			}
			pipe.ZRem(ctx, s.invitationExpiryKey(), id)
			// NX: 已是成员时保持原有加入时间
			pipe.ZAddNX(ctx, s.membersKey(inv.ProjectID), redis.Z{Score: score(now), Member: userID})
			pipe.SAdd(ctx, s.userProjectsKey(userID), inv.ProjectID)
			return s.appendEvent(ctx, pipe, evt)
		})
		return err
	}, key)
}

func (s *Store) RejectInvitation(ctx context.Context, id string, now time.Time, evt *outbox.Event) error {
	key := s.invitationKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		var inv model.Invitation
		if err := getJSON(ctx, tx, key, &inv); err != nil {
			return err
		}
		if !inv.IsActionable(now) {
			return repository.ErrStale
		}
		inv.Status = model.InvitationRejected
		inv.RespondedAt = &now

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := setJSON(ctx, pipe, key, inv); err != nil {
				return err
			}
			pipe.ZRem(ctx, s.invitationExpiryKey(), id)
			return s.appendEvent(ctx, pipe, evt)
		})
		return err
	}, key)
}

// DeleteExpiredInvitations 删除 expiresAt 早于 before 且仍为 pending 的邀请
func (s *Store) DeleteExpiredInvitations(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, s.invitationExpiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	invitations, err := loadMany[model.Invitation](ctx, s.rdb, s.invitationKeys(ids))
	if err != nil {
		return 0, err
	}

	var deleted int64
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.ZRem(ctx, s.invitationExpiryKey(), id)
		}
		for _, inv := range invitations {
			if inv.Status != model.InvitationPending {
				continue
			}
			pipe.Del(ctx, s.invitationKey(inv.ID))
			pipe.ZRem(ctx, s.projectInvitationsKey(inv.ProjectID), inv.ID)
			pipe.ZRem(ctx, s.emailInvitationsKey(inv.InviteeEmail), inv.ID)
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *Store) invitationKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.invitationKey(id)
	}
	return keys
}
