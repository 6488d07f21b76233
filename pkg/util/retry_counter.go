package util

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// 计数和续期放在同一个脚本里，避免 INCR 成功而 PEXPIRE 丢失留下永久 key
var incrWithTTL = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return n
`)

// RetryCounter 记录某个 handler 处理某个事件失败的次数
type RetryCounter struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRetryCounter(rdb *redis.Client, prefix string, ttl time.Duration) *RetryCounter {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RetryCounter{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RetryCounter) key(handler, eventKey string) string {
	return redisKey(r.prefix, "retry", handler, eventKey)
}

// Incr 失败次数加一并返回新值
func (r *RetryCounter) Incr(ctx context.Context, handler, eventKey string) (int64, error) {
	return incrWithTTL.Run(ctx, r.rdb, []string{r.key(handler, eventKey)}, r.ttl.Milliseconds()).Int64()
}

func (r *RetryCounter) Count(ctx context.Context, handler, eventKey string) (int64, error) {
	n, err := r.rdb.Get(ctx, r.key(handler, eventKey)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (r *RetryCounter) Reset(ctx context.Context, handler, eventKey string) error {
	return r.rdb.Del(ctx, r.key(handler, eventKey)).Err()
}
