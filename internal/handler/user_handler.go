package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/service"
)

type UserHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// List GET /users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, users, "")
}

// Search GET /users/search?email=
func (h *UserHandler) Search(c *gin.Context) {
	u, err := h.users.SearchByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, u, "")
}

// Update PATCH /users/:id，仅管理员
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	var req service.AdminUpdateInput
	if !bind(c, h.logger, &req) {
		return
	}
	u, err := h.users.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, u, "user updated")
}
