package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/apperr"
	"projecthub/pkg/logger"
	"projecthub/pkg/util"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Kind    apperr.Kind `json:"kind,omitempty"`
}

const (
	ctxUserKey   = "user"
	ctxClaimsKey = "claims"
)

// SetActor 由认证中间件调用
func SetActor(c *gin.Context, u *model.User, claims *util.Claims) {
	c.Set(ctxUserKey, u)
	c.Set(ctxClaimsKey, claims)
}

// Actor 当前请求的已认证用户
func Actor(c *gin.Context) *model.User {
	if v, ok := c.Get(ctxUserKey); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}

func claimsOf(c *gin.Context) *util.Claims {
	if v, ok := c.Get(ctxClaimsKey); ok {
		if claims, ok := v.(*util.Claims); ok {
			return claims
		}
	}
	return nil
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Response{Success: true, Data: data, Message: message})
}

// Fail 把 apperr 映射为 HTTP 状态码；内部错误只记录原因，不返回给调用方
func Fail(c *gin.Context, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if kind == apperr.KindInternal {
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		message = "internal server error"
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), Response{Success: false, Message: message, Kind: kind})
}

// bind 请求体格式错误统一返回 ValidationError
func bind(c *gin.Context, log *zap.Logger, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		Fail(c, log, apperr.Validation("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func requireActor(c *gin.Context, log *zap.Logger) (*model.User, bool) {
	u := Actor(c)
	if u == nil {
		Fail(c, log, apperr.Unauthenticated("authentication required"))
		return nil, false
	}
	return u, true
}

// NoRoute 未匹配路由也使用统一格式
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{Success: false, Message: "route not found", Kind: apperr.KindNotFound})
}
