package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/service"
)

type AuthHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Register POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if !bind(c, h.logger, &req) {
		return
	}
	res, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, res, "registered")
}

// Login POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bind(c, h.logger, &req) {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res, "logged in")
}

// Profile GET /auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	u, ok := requireActor(c, h.logger)
	if !ok {
		return
	}
	respond(c, http.StatusOK, u, "")
}

// Logout POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), claimsOf(c)); err != nil {
		Fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "logged out")
}
