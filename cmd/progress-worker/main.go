package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moleary1107/etownz-grants-sub007/cmd/mainconfig"
	"github.com/moleary1107/etownz-grants-sub007/internal/app/bootstrap"
	appconfig "github.com/moleary1107/etownz-grants-sub007/internal/config"
	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/internal/progress"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid progress worker configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sessions := forms.NewService(
		forms.NewPostgresRepository(pool),
		forms.NewSQLInteractionLog(bootstrap.OpenSQLDB(pool)),
		logger,
	)
	projector := progress.NewProjector(sessions, metrics.NewFormMetrics(prometheus.DefaultRegisterer), logger)

	queue := progress.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.ProgressQueueURL)
	worker := progress.NewWorker(
		projector,
		queue,
		logger,
		progress.WithWorkerCount(cfg.WorkerCount),
	)

	worker.Start(ctx)
	logger.Info("progress worker started", "workers", cfg.WorkerCount, "queue", cfg.ProgressQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down progress worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("progress worker stopped")
	case <-doneCtx.Done():
		logger.Error("progress worker shutdown timed out", "error", doneCtx.Err())
	}
}

func validateConfig(cfg *appconfig.Config) error {
	switch {
	case cfg.DatabaseURL == "":
		return errors.New("DATABASE_URL is required")
	case cfg.ProgressQueueURL == "":
		return errors.New("PROGRESS_QUEUE_URL is required")
	}
	return nil
}
