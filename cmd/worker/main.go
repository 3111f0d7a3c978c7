package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stepstats/cache-analyzer/internal/bootstrap"
	"github.com/stepstats/cache-analyzer/internal/config"
	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/observability/logging"
	"github.com/stepstats/cache-analyzer/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err.Error())
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analysisMetrics := metrics.NewAnalysisMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		EnableQueue:  true,
		ScanObserver: analysisMetrics,
	})
	if err != nil {
		logger.Error("bootstrap error", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()
	app.Bulk.SetObserver(analysisMetrics)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", analysisMetrics.Handler())
	metricsServer := &http.Server{
		Addr:        cfg.WorkerMetricsAddr,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("worker metrics listening", "addr", cfg.WorkerMetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err.Error())
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeBulkAnalysis(ctx, func(jobCtx context.Context, job domain.BulkAnalysisJob) {
		runCtx, cancel := context.WithTimeout(jobCtx, cfg.BulkJobTimeout)
		defer cancel()

		start := time.Now()
		analysisMetrics.StartRun()
		_, runErr := app.Bulk.Run(runCtx, job)
		analysisMetrics.FinishRun(time.Since(start), runErr)
		if runErr != nil {
			logger.Error("bulk analysis failed", "analysis_id", job.AnalysisID, "error", runErr.Error())
		}
	})
	if err != nil {
		logger.Error("worker subscribe error", "error", err.Error())
		os.Exit(1)
	}
}
