package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"catalog-backend/internal/app"
	"catalog-backend/internal/config"
	"catalog-backend/internal/invalidation"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	backends, err := app.NewBackends(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize backends: %v", err)
	}
	defer backends.Close()

	retry := invalidation.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Flush.MaxAttempts

	worker := invalidation.NewFlushWorker(
		backends.Queue,
		backends.Store,
		retry,
		cfg.Flush.PollEvery,
		backends.Metrics,
		logger,
	)

	logger.Info("Starting flush worker service",
		zap.String("lane", cfg.Flush.Lane),
		zap.String("environment", cfg.Environment),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	// The worker exposes its own scrape endpoint on the configured address.
	metricsServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: promhttp.HandlerFor(backends.Metrics.Registry(), promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("Metrics server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down flush worker...")
	cancel()

	select {
	case <-done:
		logger.Info("Flush worker stopped gracefully")
	case <-time.After(30 * time.Second):
		logger.Warn("Flush worker shutdown timeout exceeded")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown incomplete", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}
}
