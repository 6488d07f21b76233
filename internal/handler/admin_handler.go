package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/pkg/apperr"
	"projecthub/pkg/outbox"
)

const (
	defaultReplayLimit = 100
	maxReplayLimit     = 1000
)

// OutboxAdmin 由 outbox.ReplayService 实现
type OutboxAdmin interface {
	FailedEvents(ctx context.Context, limit int) ([]*outbox.Event, error)
	ReplayEvent(ctx context.Context, eventID string) error
	ReplayFailedEvents(ctx context.Context, limit int) (outbox.ReplayResult, error)
}

type AdminHandler struct {
	outbox OutboxAdmin
	logger *zap.Logger
}

func NewAdminHandler(outbox OutboxAdmin, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{outbox: outbox, logger: logger}
}

// limitParam 非法值回落到默认，超过上限时截断
func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	switch {
	case err != nil || n <= 0:
		return defaultReplayLimit
	case n > maxReplayLimit:
		return maxReplayLimit
	}
	return n
}

// FailedEvents GET /admin/outbox/failed?limit=100
func (h *AdminHandler) FailedEvents(c *gin.Context) {
	events, err := h.outbox.FailedEvents(c.Request.Context(), limitParam(c))
	if err != nil {
		Fail(c, h.logger, apperr.Internal(err))
		return
	}
	respond(c, http.StatusOK, events, "")
}

// ReplayOutboxEvent POST /admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		Fail(c, h.logger, apperr.Validation("missing id parameter"))
		return
	}
	err := h.outbox.ReplayEvent(c.Request.Context(), id)
	switch {
	case errors.Is(err, outbox.ErrEventNotFound):
		Fail(c, h.logger, apperr.NotFound("outbox event"))
	case err != nil:
		Fail(c, h.logger, apperr.Internal(err))
	default:
		fields := []zap.Field{zap.String("event_id", id)}
		if u := Actor(c); u != nil {
			fields = append(fields, zap.String("by", u.ID))
		}
		h.logger.Info("Outbox event replayed", fields...)
		respond(c, http.StatusOK, gin.H{"eventId": id, "status": "replayed"}, "")
	}
}

// ReplayFailedEvents POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit := limitParam(c)
	res, err := h.outbox.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		Fail(c, h.logger, apperr.Internal(err))
		return
	}
	respond(c, http.StatusOK, gin.H{"replayed": res.Replayed, "failed": res.Failed, "limit": limit}, "")
}
