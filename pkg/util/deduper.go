package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 以 handler + 事件 key 为粒度，保证同一事件只被处理一次
type Deduper struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

func (d *Deduper) key(handler, eventKey string) string {
	return redisKey(d.prefix, "dedup", handler, eventKey)
}

// AcquireOnce 第一次见到该事件返回 true，重复投递返回 false。
// Redis 出错时放行。
func (d *Deduper) AcquireOnce(ctx context.Context, handler, eventKey string) bool {
	key := d.key(handler, eventKey)
	ok, err := d.rdb.SetNX(ctx, key, time.Now().Unix(), d.ttl).Result()
	switch {
	case err != nil:
		d.logger.Warn("Dedup check failed, processing anyway",
			zap.String("dedup_key", key),
			zap.Error(err),
		)
		return true
	case !ok:
		d.logger.Info("Duplicate event skipped", zap.String("dedup_key", key))
	}
	return ok
}

// Release 处理失败时删除去重标记，重投递的消息才能再次进入 handler
func (d *Deduper) Release(ctx context.Context, handler, eventKey string) {
	key := d.key(handler, eventKey)
	if err := d.rdb.Del(ctx, key).Err(); err != nil {
		d.logger.Warn("Dedup release failed", zap.String("dedup_key", key), zap.Error(err))
	}
}
