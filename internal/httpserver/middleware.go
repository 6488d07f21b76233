package httpserver

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/handler"
	"projecthub/internal/model"
	"projecthub/pkg/apperr"
	"projecthub/pkg/logger"
	"projecthub/pkg/metrics"
	"projecthub/pkg/rbac"
	"projecthub/pkg/trace"
	"projecthub/pkg/util"
)

// TokenResolver 把 bearer token 解析为仍然有效的用户
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*model.User, *util.Claims, error)
}

// Limiter 非阻塞令牌桶
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// TraceMiddleware 沿用上游传入的 X-Trace-ID，缺失或格式不对就重新生成
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(trace.Header)
		if !trace.Valid(traceID) {
			traceID = trace.New()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.Header, traceID)
		c.Next()
	}
}

// RequestLogger 每个请求一行结构化日志
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		l := logger.WithTrace(c.Request.Context(), log)
		switch {
		case status >= 500:
			l.Error("HTTP request", fields...)
		case status >= 400:
			l.Warn("HTTP request", fields...)
		default:
			l.Info("HTTP request", fields...)
		}
	}
}

// MetricsMiddleware 按路由模板记录耗时，避免 id 造成高基数
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// AuthMiddleware 校验 token、会话和账号状态，把用户放进 gin.Context
func AuthMiddleware(resolver TokenResolver, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			handler.Fail(c, log, apperr.Unauthenticated("missing token"))
			return
		}

		u, claims, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			handler.Fail(c, log, err)
			return
		}

		handler.SetActor(c, u, claims)
		c.Next()
	}
}

// RequirePermission 要求当前用户具有指定的系统权限
func RequirePermission(roles *rbac.Roles, permission string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := handler.Actor(c)
		if u == nil {
			handler.Fail(c, log, apperr.Unauthenticated("authentication required"))
			return
		}
		if err := roles.CheckPermission(u, permission); err != nil {
			handler.Fail(c, log, err)
			return
		}
		c.Next()
	}
}

// RateLimit 按客户端 IP 限流；Redis 不可用时放行
func RateLimit(limiter Limiter, route string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, wait, err := limiter.Allow(c.Request.Context(), route+":"+c.ClientIP())
		if err != nil {
			logger.WithTrace(c.Request.Context(), log).Warn("Rate limiter unavailable, allowing request",
				zap.String("route", route),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !allowed {
			metrics.IncrementRateLimitRejected(route)
			seconds := int(math.Ceil(wait.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.Response{
				Success: false,
				Message: "too many requests",
			})
			return
		}
		c.Next()
	}
}
