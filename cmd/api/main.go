package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/moleary1107/etownz-grants-sub007/cmd/mainconfig"
	"github.com/moleary1107/etownz-grants-sub007/internal/analysis"
	"github.com/moleary1107/etownz-grants-sub007/internal/api/router"
	"github.com/moleary1107/etownz-grants-sub007/internal/app/bootstrap"
	appconfig "github.com/moleary1107/etownz-grants-sub007/internal/config"
	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/internal/progress"
	"github.com/moleary1107/etownz-grants-sub007/internal/recommendations"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting grants disclosure API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	app, err := buildApp(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.close()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RecommendationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancel()
	waitForInlineWorker(app.worker, logger)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	handler http.Handler
	worker  *progress.Worker
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires stores, services and handlers. Without DATABASE_URL every
// store is in memory, which is the local development mode.
func buildApp(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*application, error) {
	app := &application{}

	registry, formMetrics := setupMetrics()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		app.closers = append(app.closers, pool.Close)
	} else {
		logger.Warn("DATABASE_URL not set; sessions, interactions and recommendations are kept in memory")
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}

	sessionRepo, interactionLog := setupFormStores(pool)

	queue, err := bootstrap.BuildProgressQueue(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	formsService := forms.NewService(sessionRepo, interactionLog, logger,
		forms.WithPublisher(progress.NewPublisher(queue, logger)),
		forms.WithMetrics(formMetrics),
	)
	projector := progress.NewProjector(formsService, formMetrics, logger)
	app.worker = setupInlineWorker(ctx, cfg, logger, projector, queue)

	ruleStore, err := bootstrap.BuildRuleStore(ctx, cfg, pool, redisClient, formMetrics, logger)
	if err != nil {
		return nil, err
	}

	llmClient, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	orchestrator := recommendations.NewOrchestrator(
		setupRecommendationRepository(pool),
		bootstrap.BuildGenerator(llmClient, cfg, logger),
		formMetrics,
		logger,
	)

	snapshots, err := bootstrap.BuildSnapshotStore(cfg, pool, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	analysisService := analysis.NewService(ruleStore, orchestrator, snapshots, logger,
		analysis.WithDefaultFields(cfg.DefaultFields),
		analysis.WithRecommendationTimeout(cfg.RecommendationTimeout),
		analysis.WithSessionUpdater(formsService),
		analysis.WithMetrics(formMetrics),
	)

	allowDevHeader := cfg.AuthJWTSecret == "" && !cfg.IsProduction()
	if allowDevHeader {
		logger.Warn("AUTH_JWT_SECRET not set; accepting X-User-Id header for development")
	}

	app.handler = router.New(&router.Config{
		Logger:                 logger,
		SessionsHandler:        forms.NewHandler(formsService, logger),
		AnalysisHandler:        analysis.NewHandler(analysisService, formsService, logger),
		RecommendationsHandler: recommendations.NewHandler(orchestrator, formsService, logger),
		AuthSecret:             cfg.AuthJWTSecret,
		AllowDevUserHeader:     allowDevHeader,
		CORSAllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitRPS:           cfg.RateLimitRPS,
		RateLimitBurst:         cfg.RateLimitBurst,
		MetricsHandler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MetricsGatherer:        registry,
		HealthChecks:           setupHealthChecks(pool, redisClient),
	})
	return app, nil
}

func setupMetrics() (*prometheus.Registry, *metrics.FormMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, metrics.NewFormMetrics(registry)
}

func setupFormStores(pool *pgxpool.Pool) (forms.SessionRepository, forms.InteractionLog) {
	if pool == nil {
		return forms.NewInMemoryRepository(), forms.NewInMemoryInteractionLog()
	}
	return forms.NewPostgresRepository(pool), forms.NewSQLInteractionLog(bootstrap.OpenSQLDB(pool))
}

func setupRecommendationRepository(pool *pgxpool.Pool) recommendations.Repository {
	if pool == nil {
		return recommendations.NewInMemoryRepository()
	}
	return recommendations.NewPostgresRepository(pool)
}

func setupHealthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

// setupInlineWorker drains an in-process queue. SQS queues are consumed by
// cmd/progress-worker or cmd/progress-lambda instead.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, projector *progress.Projector, queue progress.Queue) *progress.Worker {
	memoryQueue, ok := queue.(*progress.MemoryQueue)
	if !ok || memoryQueue == nil {
		return nil
	}
	worker := progress.NewWorker(projector, memoryQueue, logger,
		progress.WithWorkerCount(cfg.WorkerCount),
	)
	worker.Start(ctx)
	logger.Info("inline progress worker started", "workers", cfg.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *progress.Worker, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline progress worker stopped")
	case <-time.After(10 * time.Second):
		logger.Error("inline progress worker shutdown timed out")
	}
}
