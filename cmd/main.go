package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"invitetree/graph/internal/config"
	"invitetree/graph/internal/handler"
	"invitetree/graph/internal/model"
	"invitetree/graph/internal/repository"
	"invitetree/graph/internal/scheduler"
	"invitetree/graph/internal/service"
	jwtpkg "invitetree/graph/pkg/jwt"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	var logger *zap.Logger
	if cfg.Log.Format == "json" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// 3. Connect to PostgreSQL
	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// 4. Auto-migrate if enabled
	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 5. Initialize state store (Redis or in-memory)
	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		stateStore = repository.NewRedisStateStore(redisClient)
		logger.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		logger.Info("using in-memory state store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 6. Initialize repositories
	nodeRepo := repository.NewPGNodeRepository(db)
	tokenRepo := repository.NewPGTokenRepository(db)
	auditRepo := repository.NewPGAuditEventRepository(db)
	healthRepo := repository.NewPGHealthSnapshotRepository(db)
	pruneRepo := repository.NewPGPruneOperationRepository(db)

	// 7. Initialize JWT manager (validates actor tokens from the identity service)
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.TokenTTL)

	// 8. Initialize services
	treeService := service.NewTreeService(db, nodeRepo, auditRepo)
	tokenService := service.NewTokenService(
		db, nodeRepo, tokenRepo, auditRepo,
		cfg.Invite.TokenTTL, cfg.Invite.DefaultQuota, cfg.Invite.MaxBatchSize,
		logger,
	)
	healthService := service.NewHealthService(
		treeService, nodeRepo, healthRepo,
		&service.LogStatusNotifier{Logger: logger},
		service.HealthThresholds{
			LowThreshold:  cfg.Health.LowThreshold,
			TrunkMinAge:   time.Duration(cfg.Health.TrunkMinAge) * 24 * time.Hour,
			TrunkMinScore: cfg.Health.TrunkMinScore,
			TrunkMinDepth: cfg.Health.TrunkMinDepth,
			TrunkMinSize:  cfg.Health.TrunkMinSize,
			BatchWorkers:  cfg.Health.BatchWorkers,
		},
		logger,
	)
	pruneService := service.NewPruneService(db, nodeRepo, pruneRepo, auditRepo, logger)
	quotaService := service.NewQuotaService(db, nodeRepo, auditRepo)
	auditService := service.NewAuditService(auditRepo)

	// 9. Initialize handlers
	registrationHandler := handler.NewRegistrationHandler(tokenService)
	inviteHandler := handler.NewInviteHandler(tokenService)
	treeHandler := handler.NewTreeHandler(treeService, healthService)
	adminHandler := handler.NewAdminHandler(
		treeService, tokenService, healthService, pruneService, quotaService, auditService,
	)

	// 10. Start background scheduler
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(tokenService, healthService, logger)
		if err := sched.Start(cfg.Scheduler.SweepSpec, cfg.Scheduler.HealthSpec); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	// 11. Setup router
	router := handler.SetupRouter(
		cfg, logger, jwtManager, stateStore,
		registrationHandler, inviteHandler, treeHandler, adminHandler,
	)

	// 12. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 13. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 14. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
