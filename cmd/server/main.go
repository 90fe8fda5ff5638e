package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/config"
	"github.com/stemsi/scorecast/internal/database"
	"github.com/stemsi/scorecast/internal/dataset"
	"github.com/stemsi/scorecast/internal/handler"
	"github.com/stemsi/scorecast/internal/logger"
	"github.com/stemsi/scorecast/internal/repository"
	"github.com/stemsi/scorecast/internal/router"
	"github.com/stemsi/scorecast/internal/service"
	"github.com/stemsi/scorecast/internal/validator"
	"github.com/stemsi/scorecast/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("addr", cfg.Addr()).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Scorecast")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Dataset & Train Models ───────────────────────────────────
	// A failure here leaves the service up but NOT_READY.
	artifacts := trainModels(ctx, cfg, log)

	// ─── Prediction Log (optional) ─────────────────────────────────────
	var logService *service.PredictionLogService
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if cfg.PredictionLogEnabled {
		stores, err := database.OpenStores(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open prediction log stores")
		}
		defer stores.Close()

		repo := repository.NewPredictionLogRepository(stores.Pool)
		logService = service.NewPredictionLogService(stores.Redis, repo, log)

		logWorker := worker.NewPredictionLogWorker(stores.Redis, repo, log)
		go func() {
			defer close(workerDone)
			logWorker.Start(workerCtx)
		}()
	} else {
		close(workerDone)
		log.Info().Msg("Prediction log disabled")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	var recorder service.PredictionRecorder
	if logService != nil {
		recorder = logService
	}
	predictionService := service.NewPredictionService(artifacts, recorder, log)
	authService := service.NewAuthService(cfg)
	if !authService.Enabled() {
		log.Warn().Msg("ADMIN_PASSWORD_HASH not set, admin login disabled")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	predictionHandler := handler.NewPredictionHandler(predictionService, log)
	handlers := &router.Handlers{
		Prediction: predictionHandler,
		Form:       handler.NewFormHandler(predictionHandler),
		Admin:      handler.NewAdminHandler(authService, predictionService, logService, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r, limiter := router.SetupRouter(authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", cfg.Addr()).Bool("ready", predictionService.Ready()).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	limiter.Stop()

	// 2. Stop the prediction log worker and let it flush its last batch.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(worker.LogShutdownTimeout + time.Second):
		log.Warn().Msg("Prediction log worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// trainModels loads the first available dataset and fits both forests.
// It returns nil on any failure.
func trainModels(ctx context.Context, cfg *config.Config, log zerolog.Logger) *service.Artifacts {
	candidates := cfg.DatasetPaths
	if len(candidates) == 0 {
		candidates = dataset.DefaultCandidates()
	}

	records, path, err := dataset.LoadFirst(candidates)
	if err != nil {
		log.Error().Err(err).Strs("candidates", candidates).Msg("Failed to load dataset")
		return nil
	}
	log.Info().Str("path", path).Int("rows", len(records)).Msg("Dataset loaded")

	artifacts, err := service.Train(ctx, records, service.TrainOptions{
		DatasetPath: path,
		Trees:       cfg.ForestTrees,
		Seed:        cfg.ForestSeed,
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to train models")
		return nil
	}
	return artifacts
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
