package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pixelforge/internal/adapter/repo"
	"pixelforge/internal/infra"
	"pixelforge/internal/providers/forge"
	"pixelforge/internal/storage"
	"pixelforge/internal/telemetry"
	"pixelforge/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: migrations failed")
	}

	storagePath := cfg.StoragePath
	if storagePath == "" {
		storagePath = "./storage"
	}
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	// The worker drives the job counters, so it serves its own scrape endpoint.
	go func() {
		addr := ":" + cfg.MetricsPort
		logger.Info().Str("addr", addr).Msg("worker: metrics listening")
		if err := http.ListenAndServe(addr, telemetry.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("worker: metrics server failed")
		}
	}()

	backend, err := forge.NewClient(forge.Options{
		APIKey:         cfg.ForgeAPIKey,
		BaseURL:        cfg.ForgeBaseURL,
		Model:          cfg.ForgeModel,
		HTTPClient:     &http.Client{Timeout: 60 * time.Second},
		Logger:         &logger,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure forge client")
	}

	runner := worker.NewRunner(worker.Options{
		Jobs:           repo.NewJobRepository(pool),
		Notifications:  repo.NewNotificationRepository(pool),
		Backend:        backend,
		Store:          fileStore,
		Logger:         logger,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
	})

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
