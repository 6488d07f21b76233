package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/service"
)

type MilestoneHandler struct {
	milestones *service.MilestoneService
	logger     *zap.Logger
}

func NewMilestoneHandler(milestones *service.MilestoneService, logger *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones, logger: logger}
}

// List GET /projects/:id/milestones
func (h *MilestoneHandler) List(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	ms, err := h.milestones.List(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, ms, "")
}

// Create POST /projects/:id/milestones
func (h *MilestoneHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	var req service.MilestoneInput
	if !bind(c, h.logger, &req) {
		return
	}
	m, err := h.milestones.Create(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, m, "milestone created")
}

// Update PUT /milestones/:id
func (h *MilestoneHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	var req service.UpdateMilestoneInput
	if !bind(c, h.logger, &req) {
		return
	}
	m, err := h.milestones.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, m, "milestone updated")
}

// Delete DELETE /milestones/:id
func (h *MilestoneHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	if err := h.milestones.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "milestone deleted")
}
