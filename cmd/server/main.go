package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appworkflow "github.com/erp/fulfillment/internal/application/workflow"
	domainworkflow "github.com/erp/fulfillment/internal/domain/workflow"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/jobqueue"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/persistence"
	"github.com/erp/fulfillment/internal/interfaces/http/handler"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/erp/fulfillment/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log := logger.New(cfg.Log)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting fulfillment engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Repositories
	pipelineRepo := persistence.NewGormPipelineRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	subStatusRepo := persistence.NewGormSubStatusRepository(db.DB)
	paymentMethodRepo := persistence.NewGormPaymentMethodRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	// Job queue
	queue, err := jobqueue.NewQueue(db.DB, jobqueue.Config{
		LaneBuffer: cfg.JobQueue.LaneBuffer,
		JobTimeout: cfg.JobQueue.JobTimeout,
		Retry: jobqueue.RetryPolicy{
			MaxAttempts: cfg.JobQueue.MaxAttempts,
			Backoff:     cfg.JobQueue.RetryBackoff,
			IsConflict:  jobqueue.IsConcurrencyConflict,
		},
	}, log)
	if err != nil {
		log.Fatal("Failed to create job queue", zap.Error(err))
	}
	if err := queue.Start(context.Background()); err != nil {
		log.Fatal("Failed to start job queue", zap.Error(err))
	}

	// Application services
	registry := appworkflow.DefaultRegistry()
	builder := domainworkflow.NewTaskListBuilder(subStatusRepo, paymentMethodRepo)
	pipelineService := appworkflow.NewPipelineService(
		pipelineRepo,
		orderRepo,
		builder,
		queue,
		registry,
		txManager,
		log,
	)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(logger.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))

	pipelineHandler := handler.NewPipelineHandler(pipelineService, log)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(pipelineHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight jobs finish before the database goes away
	if err := queue.Stop(ctx); err != nil {
		log.Warn("Job queue did not drain cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
