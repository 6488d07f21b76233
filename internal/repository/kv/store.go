// Package kv 是基于 Redis 的存储适配器，实现与 postgres 适配器相同的存储接口。
//
// 邀请的创建与接受通过 WATCH/MULTI 做乐观并发控制；其余的读-改-写
// （项目设置、任务、里程碑、用户）是 last writer wins。
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"projecthub/internal/repository"
)

const maxTxAttempts = 5

type Store struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

func NewStore(rdb *redis.Client, prefix string, logger *zap.Logger) *Store {
	if prefix == "" {
		prefix = "ph"
	}
	return &Store{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// getJSON 缺失时返回 repository.ErrNotFound
func getJSON(ctx context.Context, c redis.Cmdable, key string, out any) error {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return repository.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func setJSON(ctx context.Context, pipe redis.Pipeliner, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	pipe.Set(ctx, key, raw, 0)
	return nil
}

// loadMany MGET 批量读取，已被删除的 key 跳过
func loadMany[T any](ctx context.Context, c redis.Cmdable, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return []*T{}, nil
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		item := new(T)
		if err := json.Unmarshal([]byte(str), item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, item)
	}
	return out, nil
}

// watch 乐观事务，冲突时重试
func (s *Store) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxAttempts; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug("Redis transaction conflict, retrying", zap.Strings("keys", keys), zap.Int("attempt", i+1))
	}
	return repository.ErrStale
}
