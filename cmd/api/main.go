package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"catalog-backend/internal/app"
	"catalog-backend/internal/config"
	"catalog-backend/internal/domain/category"
	"catalog-backend/internal/interfaces/http/handlers"
	"catalog-backend/internal/invalidation"
	"catalog-backend/internal/service/catalog"
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

	source, err := loadSource()
	if err != nil {
		log.Fatalf("Failed to load catalog source: %v", err)
	}

	resolver := category.NewRootResolver(source, cfg.Cache.MemoTTL, logger)
	defer resolver.Stop()

	scheduler := invalidation.NewDebounceScheduler(
		backends.Locker,
		backends.Queue,
		cfg.Flush.LockTTL,
		cfg.Flush.Delay,
		cfg.Cache.KeyPrefix,
		backends.Metrics,
		logger,
	)
	fallback := invalidation.NewFallbackPolicy(scheduler, backends.Metrics, logger)
	fallback.StartStatsLoop(ctx, time.Minute)

	aggregator := invalidation.NewAggregator(resolver, backends.Store, fallback, backends.Metrics, logger)
	service := catalog.NewService(source, backends.Store, resolver, cfg.Cache.EntryTTL, backends.Metrics, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Mount("/api/categories", handlers.NewCategoryHandler(service, logger).Routes())
	router.Mount("/api/invalidations", handlers.NewInvalidationHandler(aggregator, logger).Routes())
	router.Handle("/metrics", promhttp.HandlerFor(backends.Metrics.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("Starting API server",
			zap.String("addr", cfg.ListenAddr),
			zap.String("backend", cfg.Backend),
			zap.String("environment", cfg.Environment),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown incomplete", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}
}

// loadSource builds the catalog source of truth. With no fixture configured
// the server starts empty; production deployments replace this with the real
// persistence layer.
func loadSource() (*catalog.StaticSource, error) {
	if path := os.Getenv("CATALOG_SOURCE_FILE"); path != "" {
		return catalog.LoadStaticSource(path)
	}
	return catalog.NewStaticSource(), nil
}
