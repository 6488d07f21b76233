package kv

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"projecthub/internal/repository"
	"projecthub/pkg/outbox"
)

// outbox 事件：JSON 记录 + 按状态划分的 zset
//
//	pending: 分值为下一次可投递时间
//	failed / sent: 分值为最后更新时间
func (s *Store) outboxKey(id string) string     { return s.key("outbox", id) }
func (s *Store) outboxIndex(status string) string { return s.key("outbox", status) }

var _ outbox.Store = (*Store)(nil)

// appendEvent 在调用方的 MULTI 中写入事件
func (s *Store) appendEvent(ctx context.Context, pipe redis.Pipeliner, evt *outbox.Event) error {
	if evt == nil {
		return nil
	}
	if err := setJSON(ctx, pipe, s.outboxKey(evt.ID), evt); err != nil {
		return err
	}
	pipe.ZAdd(ctx, s.outboxIndex(outbox.StatusPending), redis.Z{Score: score(evt.CreatedAt), Member: evt.ID})
	return nil
}

func (s *Store) GetPendingEvents(ctx context.Context, limit int) ([]*outbox.Event, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, s.outboxIndex(outbox.StatusPending), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.loadEvents(ctx, ids)
}

func (s *Store) GetFailedEvents(ctx context.Context, limit int) ([]*outbox.Event, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.outboxIndex(outbox.StatusFailed), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	return s.loadEvents(ctx, ids)
}

func (s *Store) loadEvents(ctx context.Context, ids []string) ([]*outbox.Event, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.outboxKey(id)
	}
	return loadMany[outbox.Event](ctx, s.rdb, keys)
}

func (s *Store) GetEventByID(ctx context.Context, eventID string) (*outbox.Event, error) {
	var e outbox.Event
	if err := getJSON(ctx, s.rdb, s.outboxKey(eventID), &e); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, outbox.ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *Store) MarkAsSent(ctx context.Context, eventID string) error {
	return s.transitionEvent(ctx, eventID, func(e *outbox.Event, now time.Time) {
		e.Status = outbox.StatusSent
		e.NextRetryAt = nil
	})
}

func (s *Store) MarkAsFailed(ctx context.Context, eventID string, maxRetries int) error {
	return s.transitionEvent(ctx, eventID, func(e *outbox.Event, now time.Time) {
		e.RetryCount++
		e.Status, e.NextRetryAt = outbox.NextAttempt(e.RetryCount, maxRetries, now)
	})
}

func (s *Store) ReplayEvent(ctx context.Context, eventID string) error {
	return s.transitionEvent(ctx, eventID, func(e *outbox.Event, now time.Time) {
		e.Status = outbox.StatusPending
		e.RetryCount = 0
		e.NextRetryAt = nil
	})
}

// transitionEvent 更新事件记录并把它移到新状态对应的索引
func (s *Store) transitionEvent(ctx context.Context, eventID string, mutate func(e *outbox.Event, now time.Time)) error {
	e, err := s.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	now := time.Now()
	mutate(e, now)
	e.UpdatedAt = now

	indexScore := score(now)
	if e.Status == outbox.StatusPending && e.NextRetryAt != nil {
		indexScore = score(*e.NextRetryAt)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := setJSON(ctx, pipe, s.outboxKey(e.ID), e); err != nil {
			return err
		}
		for _, status := range []string{outbox.StatusPending, outbox.StatusFailed, outbox.StatusSent} {
			if status != e.Status {
				pipe.ZRem(ctx, s.outboxIndex(status), e.ID)
			}
		}
		pipe.ZAdd(ctx, s.outboxIndex(e.Status), redis.Z{Score: indexScore, Member: e.ID})
		return nil
	})
	return err
}

func (s *Store) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	index := s.outboxIndex(outbox.StatusSent)
	upper := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	ids, err := s.rdb.ZRangeByScore(ctx, index, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.outboxKey(id))
		}
		pipe.ZRem(ctx, index, toMembers(ids)...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func toMembers(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
