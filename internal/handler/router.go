package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invitetree/graph/internal/config"
	"invitetree/graph/internal/handler/middleware"
	"invitetree/graph/internal/repository"
	jwtpkg "invitetree/graph/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	stateStore repository.StateStore,
	registrationHandler *RegistrationHandler,
	inviteHandler *InviteHandler,
	treeHandler *TreeHandler,
	adminHandler *AdminHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public routes
	public := r.Group("/api/v1")
	{
		public.POST("/auth/register", registrationHandler.Register)
		public.GET("/invites/validate/:token",
			middleware.RateLimit(cfg.RateLimit, stateStore, logger),
			inviteHandler.Validate)
	}

	// Protected routes (actor token from the identity service)
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(jwtManager))
	{
		protected.POST("/invites", inviteHandler.Create)
		protected.GET("/invites", inviteHandler.List)
		protected.DELETE("/invites/:id", inviteHandler.Revoke)

		protected.GET("/tree/ancestors", treeHandler.Ancestors)
		protected.GET("/tree/children", treeHandler.Children)
		protected.GET("/tree/health", treeHandler.Health)
	}

	// Admin routes (JWT + role check)
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.JWTAuth(jwtManager))
	admin.Use(middleware.AdminAuth())
	{
		admin.GET("/nodes/:id/descendants", adminHandler.Descendants)
		admin.GET("/nodes/:id/ancestors", adminHandler.Ancestors)
		admin.GET("/nodes/:id/tree", adminHandler.Tree)
		admin.GET("/nodes/:id/stats", adminHandler.SubtreeStats)
		admin.GET("/nodes/:id/health", adminHandler.HealthHistory)
		admin.POST("/nodes/:id/flag", adminHandler.Flag)
		admin.POST("/nodes/:id/unflag", adminHandler.Unflag)
		admin.PUT("/nodes/:id/quota", adminHandler.AdjustQuota)

		admin.GET("/nodes/:id/prune/preview", adminHandler.PrunePreview)
		admin.POST("/nodes/:id/prune", adminHandler.PruneExecute)
		admin.GET("/prunes", adminHandler.PruneList)
		admin.GET("/prunes/:id", adminHandler.PruneGet)
		admin.POST("/prunes/:id/rollback", adminHandler.PruneRollback)

		admin.GET("/audit", adminHandler.AuditQuery)

		admin.POST("/jobs/sweep-expired", adminHandler.RunSweep)
		admin.POST("/jobs/health-batch", adminHandler.RunHealthBatch)
	}

	return r
}
