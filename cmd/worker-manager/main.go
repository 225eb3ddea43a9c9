// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"registry-workers/internal/common/aws"
	"registry-workers/internal/common/camunda"
	"registry-workers/internal/common/config"
	"registry-workers/internal/common/database"
	"registry-workers/internal/common/logger"
	"registry-workers/internal/common/metrics"
	"registry-workers/internal/common/observability"
	"registry-workers/internal/corpus"
	"registry-workers/internal/dedup"

	dc "registry-workers/internal/workers/dedup/duplicate-check"
	dcb "registry-workers/internal/workers/dedup/duplicate-check-batch"
	ds "registry-workers/internal/workers/dedup/duplicate-statistics"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("corpusSource", cfg.Dedup.Corpus.Source),
	)

	obs, err := observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	})
	if err != nil {
		zapLog.Warn("observability setup incomplete", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Backends required by the corpus, with retry ---
	var clients *database.Clients
	err = retryWithBackoff(func() error {
		var err error
		clients, err = database.Open(ctx, cfg, log)
		return err
	}, 15, 2*time.Second, zapLog, "Corpus backend connection")
	if err != nil {
		zapLog.Fatal("corpus backends failed after retries", zap.Error(err))
	}
	defer clients.Close()

	provider, _, err := corpus.New(cfg.Dedup.Corpus, clients, log)
	if err != nil {
		zapLog.Fatal("corpus provider setup failed", zap.Error(err))
	}

	// --- Engine and its observers ---
	tracker := dedup.NewStatisticsTracker()
	observers := []dedup.ScanObserver{tracker, metrics.NewScanRecorder(), obs}

	if cfg.Alerts.SNS.Enabled {
		alerter, err := aws.NewSNSDuplicateAlerter(ctx, cfg.Alerts.SNS.Region, cfg.Alerts.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns alerter setup failed", zap.Error(err))
		}
		observers = append(observers, alerter)
		zapLog.Info("Duplicate alerts enabled", zap.String("topicArn", cfg.Alerts.SNS.TopicARN))
	}

	engine := dedup.NewEngine(dedup.EngineOptions{
		Corpus:    provider,
		Logger:    log,
		Observers: observers,
		Tracer:    obs.Tracer("registry-workers/dedup"),
	})

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ClientConfigFromApp(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Register workers ---
	var workers []worker.JobWorker

	checkHandler, err := dc.NewHandler(dc.HandlerOptions{AppConfig: cfg, Engine: engine, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create duplicate-check handler", zap.Error(err))
	}
	if checkHandler.IsEnabled() {
		workers = append(workers, camunda.OpenWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      dc.TaskType,
			MaxJobsActive: checkHandler.GetConfig().MaxJobsActive,
			Timeout:       checkHandler.GetConfig().Timeout,
		}, instrument(obs, dc.TaskType, checkHandler.Handle), log))
	}

	batchHandler, err := dcb.NewHandler(dcb.HandlerOptions{AppConfig: cfg, Engine: engine, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create duplicate-check-batch handler", zap.Error(err))
	}
	if batchHandler.IsEnabled() {
		workers = append(workers, camunda.OpenWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      dcb.TaskType,
			MaxJobsActive: batchHandler.GetConfig().MaxJobsActive,
			Timeout:       batchHandler.GetConfig().Timeout,
		}, instrument(obs, dcb.TaskType, batchHandler.Handle), log))
	}

	statsHandler, err := ds.NewHandler(ds.HandlerOptions{AppConfig: cfg, Tracker: tracker, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create duplicate-statistics handler", zap.Error(err))
	}
	if statsHandler.IsEnabled() {
		workers = append(workers, camunda.OpenWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      ds.TaskType,
			MaxJobsActive: statsHandler.GetConfig().MaxJobsActive,
			Timeout:       statsHandler.GetConfig().Timeout,
		}, instrument(obs, ds.TaskType, statsHandler.Handle), log))
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	checkers := append(clients.Checkers(), zeebe)
	server := &http.Server{
		Addr:              cfg.Observability.MetricsAddress,
		Handler:           newHealthMux(checkers, 3*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	stats := tracker.Snapshot()
	zapLog.Info("Worker manager stopped gracefully",
		zap.Int64("duplicatesFound", stats.TotalFound),
		zap.Int64("duplicatesResolved", stats.TotalResolved),
	)
}
