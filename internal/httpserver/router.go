package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"projecthub/internal/handler"
	"projecthub/pkg/otel"
	"projecthub/pkg/rbac"
)

// Handlers 所有 HTTP handler
type Handlers struct {
	Auth       *handler.AuthHandler
	Project    *handler.ProjectHandler
	Milestone  *handler.MilestoneHandler
	Task       *handler.TaskHandler
	Invitation *handler.InvitationHandler
	User       *handler.UserHandler
	Admin      *handler.AdminHandler
}

// ReadinessCheck /readyz 依次执行的依赖检查
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Options struct {
	Resolver     TokenResolver
	Roles        *rbac.Roles
	LoginLimiter Limiter
	Checks       []ReadinessCheck
	Logger       *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, opts Options) *Router {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), MetricsMiddleware(), RequestLogger(log))
	r.NoRoute(handler.NoRoute)

	// Health endpoints (放在最前面)
	r.GET("/healthz", health)
	r.HEAD("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", health)
	r.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/readyz", readiness(opts.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	authGroup := r.Group("/auth")
	if opts.LoginLimiter != nil {
		authGroup.POST("/register", RateLimit(opts.LoginLimiter, "register", log), h.Auth.Register)
		authGroup.POST("/login", RateLimit(opts.LoginLimiter, "login", log), h.Auth.Login)
	} else {
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
	}
	r.GET("/invitations/:id", h.Invitation.Get)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(opts.Resolver, log))
	{
		auth.GET("/auth/profile", h.Auth.Profile)
		auth.POST("/auth/logout", h.Auth.Logout)

		auth.GET("/projects", h.Project.List)
		auth.POST("/projects", h.Project.Create)
		auth.GET("/projects/:id", h.Project.Get)
		auth.PUT("/projects/:id", h.Project.Update)
		auth.DELETE("/projects/:id", h.Project.Delete)
		auth.GET("/projects/:id/members", h.Project.Members)
		auth.DELETE("/projects/:id/members/:userId", h.Project.RemoveMember)
		auth.GET("/projects/:id/stats", h.Project.Stats)
		auth.POST("/projects/:id/breakdown", h.Project.Breakdown)
		auth.GET("/projects/:id/invitations", h.Project.Invitations)
		auth.GET("/projects/:id/milestones", h.Milestone.List)
		auth.POST("/projects/:id/milestones", h.Milestone.Create)

		auth.PUT("/milestones/:id", h.Milestone.Update)
		auth.DELETE("/milestones/:id", h.Milestone.Delete)

		auth.GET("/tasks/project/:projectId", h.Task.ListByProject)
		auth.POST("/tasks", h.Task.Create)
		auth.GET("/tasks/:id", h.Task.Get)
		auth.PUT("/tasks/:id", h.Task.Update)
		auth.DELETE("/tasks/:id", h.Task.Delete)

		auth.POST("/invitations", h.Invitation.Create)
		auth.GET("/invitations/received", h.Invitation.Received)
		auth.POST("/invitations/:id/accept", h.Invitation.Accept)
		auth.POST("/invitations/:id/reject", h.Invitation.Reject)

		auth.GET("/users", h.User.List)
		auth.GET("/users/search", h.User.Search)
		auth.PATCH("/users/:id", h.User.Update)
	}

	admin := auth.Group("/admin")
	admin.Use(RequirePermission(opts.Roles, rbac.PermissionReplayOutbox, log))
	{
		admin.GET("/outbox/failed", h.Admin.FailedEvents)
		admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readiness(checks []ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": check.Name + "_not_ready",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
