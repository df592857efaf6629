package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultgrid/dataroom-rag/internal/bootstrap"
	"github.com/vaultgrid/dataroom-rag/internal/config"
	"github.com/vaultgrid/dataroom-rag/internal/observability/logging"
	"github.com/vaultgrid/dataroom-rag/internal/observability/metrics"
)

const service = "dataroom-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		StageObserver: func(stage string, duration time.Duration) {
			workerMetrics.ObserveStage(service, stage, duration)
		},
	})
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeFileUploaded(ctx, func(handlerCtx context.Context, fileID string) error {
		ingestCtx, cancel := context.WithTimeout(handlerCtx, app.FileTimeout())
		defer cancel()

		if file, err := app.Repo.GetByID(ingestCtx, fileID); err == nil {
			workerMetrics.ObserveQueueLag(service, time.Since(file.CreatedAt))
		}

		workerMetrics.StartFile()
		start := time.Now()
		ingestErr := app.IngestUC.IngestByID(ingestCtx, fileID)
		workerMetrics.FinishFile(service, time.Since(start), ingestErr)

		if ingestErr == nil {
			if file, err := app.Repo.GetByID(ingestCtx, fileID); err == nil {
				workerMetrics.ObserveChunks(service, file.Metadata.ChunkCount, file.Metadata.EmbeddingCount)
			}
		}
		return ingestErr
	})
	if err != nil {
		slog.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}
