package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/service"
)

type ProjectHandler struct {
	projects    *service.ProjectService
	tasks       *service.TaskService
	breakdown   *service.BreakdownService
	invitations *service.InvitationService
	logger      *zap.Logger
}

func NewProjectHandler(
	projects *service.ProjectService,
	tasks *service.TaskService,
	breakdown *service.BreakdownService,
	invitations *service.InvitationService,
	logger *zap.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		projects:    projects,
		tasks:       tasks,
		breakdown:   breakdown,
		invitations: invitations,
		logger:      logger,
	}
}

// List GET /projects
func (h *ProjectHandler) List(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	projects, err := h.projects.List(c.Request.Context(), actor)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, projects, "")
}

// Create POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	var req service.CreateProjectInput
	if !bind(c, h.logger, &req) {
		return
	}
	p, err := h.projects.Create(c.Request.Context(), actor, req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, p, "project created")
}

// Get GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	p, err := h.projects.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p, "")
}

// Update PUT /projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	var req service.UpdateProjectInput
	if !bind(c, h.logger, &req) {
		return
	}
	p, err := h.projects.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p, "project updated")
}

// Delete DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	if err := h.projects.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "project deleted")
}

// Members GET /projects/:id/members
func (h *ProjectHandler) Members(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	users, err := h.projects.Members(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, users, "")
}

// RemoveMember DELETE /projects/:id/members/:userId
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	if err := h.projects.RemoveMember(c.Request.Context(), actor, c.Param("id"), c.Param("userId")); err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "member removed")
}

// Stats GET /projects/:id/stats
func (h *ProjectHandler) Stats(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	stats, err := h.tasks.Stats(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, stats, "")
}

// Breakdown POST /projects/:id/breakdown
func (h *ProjectHandler) Breakdown(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	var req service.BreakdownInput
	if !bind(c, h.logger, &req) {
		return
	}
	res, err := h.breakdown.Generate(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if req.Apply {
		status = http.StatusCreated
	}
	respond(c, status, res, "")
}

// Invitations GET /projects/:id/invitations
func (h *ProjectHandler) Invitations(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	invs, err := h.invitations.ListForProject(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, invs, "")
}
