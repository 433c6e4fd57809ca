// Package main provides the HealthSpec API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/healthspec-ai/healthspec/internal/config"
	"github.com/healthspec-ai/healthspec/internal/convert"
	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/extract"
	"github.com/healthspec-ai/healthspec/internal/gap"
	"github.com/healthspec-ai/healthspec/internal/llm"
	"github.com/healthspec-ai/healthspec/internal/observability"
	"github.com/healthspec-ai/healthspec/internal/pipeline"
	"github.com/healthspec-ai/healthspec/internal/progress"
	"github.com/healthspec-ai/healthspec/internal/question"
	"github.com/healthspec-ai/healthspec/internal/storage"
	"github.com/healthspec-ai/healthspec/internal/synth"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "healthspec",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("progress_store", cfg.Progress.Store).
		Msg("Starting HealthSpec API")

	client, err := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		VisionModel: cfg.LLM.VisionModel,
		BaseURL:     cfg.LLM.BaseURL,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create completion client")
	}

	db, err := storage.Open(cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := storage.EnsureSchema(context.Background(), db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	var store progress.Store
	if cfg.Progress.Store == "redis" {
		store, err = progress.NewRedisStore(progress.RedisConfig{
			Addr:     cfg.Progress.Redis.Addr,
			Password: cfg.Progress.Redis.Password,
			DB:       cfg.Progress.Redis.DB,
			PoolSize: cfg.Progress.Redis.PoolSize,
			TTL:      cfg.Progress.TTL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
	} else {
		store = progress.NewMemoryStore()
	}

	tracker := progress.NewTracker(store, logger, progress.Config{TTL: cfg.Progress.TTL})
	defer tracker.Close()

	// Converters hold per-job temp directory state, so the pipeline gets a
	// factory rather than a shared instance.
	converterFactory := func() domain.Converter {
		return convert.NewConverter(convert.Options{
			DPI:         cfg.Pipeline.TargetDPI,
			TargetWidth: cfg.Pipeline.TargetWidth,
			MaxPages:    cfg.Pipeline.MaxPages,
			SofficePath: cfg.Pipeline.SofficePath,
			TempRoot:    cfg.Pipeline.TempDir,
			Logger:      logger,
		})
	}

	extractor := extract.NewExtractor(extract.Options{
		Client:      client,
		Progress:    tracker,
		Logger:      logger,
		Concurrency: cfg.Pipeline.ExtractionConcurrency,
		PageTimeout: cfg.Pipeline.PageCallTimeout,
	})

	svc := pipeline.NewService(pipeline.Options{
		Converter:    converterFactory,
		Extractor:    extractor,
		Analyzer:     gap.NewAnalyzer(client, logger),
		Generator:    question.NewGenerator(logger),
		Synthesizer:  synth.NewSynthesizer(client, logger),
		Requirements: storage.NewRequirementRepository(db),
		TestCases:    storage.NewTestCaseRepository(db),
		Progress:     tracker,
		Logger:       logger,
		StateTTL:     cfg.Progress.TTL,
	})

	router := NewRouter(logger, Deps{
		Pipeline:     svc,
		Progress:     tracker,
		Requirements: storage.NewRequirementRepository(db),
		UploadRoot:   cfg.Pipeline.TempDir,
		Timeout:      cfg.Server.RequestTimeout,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
