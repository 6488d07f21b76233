package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/repository"
	"projecthub/internal/service"
)

type TaskHandler struct {
	tasks  *service.TaskService
	logger *zap.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// ListByProject GET /tasks/project/:projectId?status=&assigneeId=&milestoneId=
func (h *TaskHandler) ListByProject(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	f := repository.TaskFilter{
		Status:      model.TaskStatus(c.Query("status")),
		AssigneeID:  c.Query("assigneeId"),
		MilestoneID: c.Query("milestoneId"),
	}
	tasks, err := h.tasks.List(c.Request.Context(), actor, c.Param("projectId"), f)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, tasks, "")
}

// Get GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	t, err := h.tasks.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, t, "")
}

// Create POST /tasks
func (h *TaskHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	var req service.CreateTaskInput
	if !bind(c, h.logger, &req) {
		return
	}
	t, err := h.tasks.Create(c.Request.Context(), actor, req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, t, "task created")
}

// Update PUT /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	var req service.UpdateTaskInput
	if !bind(c, h.logger, &req) {
		return
	}
	t, err := h.tasks.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, t, "task updated")
}

// Delete DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "task deleted")
}
