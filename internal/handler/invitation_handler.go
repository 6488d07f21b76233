package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/service"
)

type InvitationHandler struct {
	invitations *service.InvitationService
	logger      *zap.Logger
}

func NewInvitationHandler(invitations *service.InvitationService, logger *zap.Logger) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, logger: logger}
}

// Create POST /invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	var req struct {
		ProjectID string `json:"projectId" binding:"required"`
		Email     string `json:"email" binding:"required"`
	}
	if !bind(c, h.logger, &req) {
		return
	}
	inv, err := h.invitations.Create(c.Request.Context(), actor, req.ProjectID, req.Email)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, inv, "invitation sent")
}

// Received GET /invitations/received
func (h *InvitationHandler) Received(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	invs, err := h.invitations.ListReceived(c.Request.Context(), actor)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, invs, "")
}

// Get GET /invitations/:id，无需登录
func (h *InvitationHandler) Get(c *gin.Context) {
	view, err := h.invitations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, view, "")
}

// Accept POST /invitations/:id/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	inv, err := h.invitations.Accept(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, inv, "invitation accepted")
}

// Reject POST /invitations/:id/reject
func (h *InvitationHandler) Reject(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	inv, err := h.invitations.Reject(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, inv, "invitation rejected")
}
