package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Acquirer 由 ratelimit.RateLimiter 实现
type Acquirer interface {
	Acquire(ctx context.Context, key string) error
}

// ThrottledMailer 所有 worker 实例共享一个 SMTP 发送令牌桶
type ThrottledMailer struct {
	Mailer
	Limiter Acquirer
	Key     string
	Logger  *zap.Logger
}

// Send 限流器本身出错时照常发送，只有 ctx 结束才放弃
func (m ThrottledMailer) Send(ctx context.Context, to, subject, html string) (string, error) {
	if err := m.Limiter.Acquire(ctx, m.Key); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if m.Logger != nil && !errors.Is(err, context.DeadlineExceeded) {
			m.Logger.Warn("SMTP throttle unavailable, sending anyway", zap.Error(err))
		}
	}
	return m.Mailer.Send(ctx, to, subject, html)
}
