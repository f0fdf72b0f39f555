package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/simlab-api/api/swagger"
	"github.com/noah-isme/simlab-api/internal/handler"
	"github.com/noah-isme/simlab-api/internal/middleware"
	"github.com/noah-isme/simlab-api/internal/models"
	"github.com/noah-isme/simlab-api/internal/repository"
	"github.com/noah-isme/simlab-api/internal/service"
	"github.com/noah-isme/simlab-api/pkg/cache"
	"github.com/noah-isme/simlab-api/pkg/config"
	"github.com/noah-isme/simlab-api/pkg/database"
	"github.com/noah-isme/simlab-api/pkg/jobs"
	"github.com/noah-isme/simlab-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/simlab-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/simlab-api/pkg/middleware/requestid"
)

// @title SimLab API
// @version 1.0.0
// @description Classroom simulation platform: scenarios, submissions, simulation jobs, and the outcome ledger.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Variables.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, variable cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close()
		}
	}

	validate := validator.New()

	scenarioRepo := repository.NewScenarioRepository(db)
	outcomeRepo := repository.NewOutcomeRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	jobRepo := repository.NewJobRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Variables.CacheTTL, logr, cfg.Variables.Enabled && cacheRepo != nil)
	authSvc := service.NewAuthService(cfg.JWT, logr)
	accessSvc := service.NewAccessService(classroomRepo, logr)
	scenarioSvc := service.NewScenarioService(scenarioRepo, accessSvc, cacheSvc, cfg.Variables.CacheTTL, validate, logr)
	outcomeSvc := service.NewOutcomeService(outcomeRepo, scenarioRepo, accessSvc, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, scenarioSvc, accessSvc, validate, logr)
	jobSvc := service.NewJobService(jobRepo, logr)
	ledgerSvc := service.NewLedgerService(ledgerRepo, logr)
	simulationSvc := service.NewSimulationService(jobRepo, ledgerRepo, submissionRepo, outcomeRepo, scenarioRepo, scenarioSvc, accessSvc, metricsSvc, cfg.Simulation, logr)

	queue := jobs.NewQueue("simulation", func(ctx context.Context, job jobs.Job) error {
		_, err := simulationSvc.ProcessJob(ctx, job.ID)
		return err
	}, jobs.QueueConfig{
		Workers:    cfg.Simulation.WorkerConcurrency,
		BufferSize: cfg.Simulation.QueueBuffer,
		MaxRetries: cfg.Simulation.QueueRetries,
		RetryDelay: cfg.Simulation.QueueRetryDelay,
		Logger:     logr,
	})
	simulationSvc.AttachDispatcher(queue)

	scenarioHandler := handler.NewScenarioHandler(scenarioSvc, outcomeSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	simulationHandler := handler.NewSimulationHandler(simulationSvc, jobSvc)
	ledgerHandler := handler.NewLedgerHandler(ledgerSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleMember)

	scenarios := api.Group("/scenarios")
	{
		scenarios.POST("", adminOnly, scenarioHandler.Create)
		scenarios.GET("", anyRole, scenarioHandler.List)
		scenarios.GET("/:id", anyRole, scenarioHandler.Get)
		scenarios.PUT("/:id", adminOnly, scenarioHandler.Update)
		scenarios.POST("/:id/publish", adminOnly, scenarioHandler.Publish)
		scenarios.POST("/:id/unpublish", adminOnly, scenarioHandler.Unpublish)
		scenarios.POST("/:id/close", adminOnly, scenarioHandler.Close)
		scenarios.PUT("/:id/outcome", adminOnly, scenarioHandler.UpsertOutcome)
		scenarios.GET("/:id/outcome", adminOnly, scenarioHandler.GetOutcome)
		scenarios.POST("/:id/preview", adminOnly, simulationHandler.Preview)
		scenarios.POST("/:id/run", adminOnly, simulationHandler.Run)
		scenarios.POST("/:id/rerun", adminOnly, simulationHandler.Rerun)
		scenarios.GET("/:id/jobs", adminOnly, simulationHandler.ListJobs)
		scenarios.GET("/:id/ledger", adminOnly, ledgerHandler.List)
		scenarios.GET("/:id/ledger/me", anyRole, ledgerHandler.GetMine)
		scenarios.GET("/:id/ledger/export", adminOnly, ledgerHandler.ExportCSV)
	}

	classrooms := api.Group("/classrooms")
	{
		classrooms.GET("/:classroomId/active-scenario", anyRole, scenarioHandler.GetActive)
		classrooms.POST("/:classroomId/submissions", anyRole, submissionHandler.Create)
		classrooms.GET("/:classroomId/scenarios/:scenarioId/submissions", adminOnly, submissionHandler.ListByScenario)
		classrooms.GET("/:classroomId/scenarios/:scenarioId/submissions/me", anyRole, submissionHandler.GetMine)
	}

	api.GET("/jobs/:id", adminOnly, simulationHandler.GetJob)
	api.GET("/metrics/snapshot", adminOnly, metricsHandler.Snapshot)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()
	simulationSvc.StartPolling(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
