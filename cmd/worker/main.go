package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/imaginify/internal/config"
	"github.com/dunamismax/imaginify/internal/download"
	"github.com/dunamismax/imaginify/internal/events"
	"github.com/dunamismax/imaginify/internal/logging"
	"github.com/dunamismax/imaginify/internal/pipeline"
	"github.com/dunamismax/imaginify/internal/storage"
	"github.com/dunamismax/imaginify/internal/store"
	"github.com/dunamismax/imaginify/internal/telemetry"
	"github.com/dunamismax/imaginify/internal/webhook"
	"github.com/dunamismax/imaginify/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env, "imaginify-worker")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := pipeline.Startup(pipeline.RuntimeConfig{
		MaxCacheMemMB: cfg.Worker.VipsCacheMemMB,
		MaxCacheSize:  cfg.Worker.VipsCacheSize,
	}); err != nil {
		logger.Fatal().Err(err).Msg("image runtime startup failed")
	}
	defer pipeline.Shutdown()

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "imaginify-worker",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup failed")
	}

	images, closeStore, err := store.Open(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("image store setup failed")
	}

	var emitter pipeline.Emitter = pipeline.LocalFileEmitter{OutputDir: cfg.Worker.LocalOutputDir}
	if cfg.Storage.Enabled {
		storageClient, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			Region:   cfg.Storage.Region,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("object storage setup failed")
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := storageClient.EnsureBucket(bucketCtx); err != nil {
			logger.Fatal().Err(err).Str("bucket", storageClient.Bucket()).Msg("ensure bucket failed")
		}
		cancel()
		emitter = pipeline.ObjectStoreEmitter{Storage: storageClient}
	}

	processor, err := pipeline.NewProcessor(pipeline.RenderFetcher{
		Client:     download.NewClient(download.Config{}),
		AllowFiles: strings.EqualFold(cfg.Env, "development"),
	}, emitter)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline setup failed")
	}

	publisher := events.New(cfg.Events.Brokers, cfg.Events.Topic, logger)
	webhooks := webhook.NewClient(webhook.Config{
		SigningSecret:  cfg.Webhook.SigningSecret,
		Timeout:        cfg.Webhook.Timeout,
		MaxAttempts:    cfg.Webhook.MaxAttempts,
		InitialBackoff: cfg.Webhook.InitialBackoff,
		MaxBackoff:     cfg.Webhook.MaxBackoff,
	})

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, processor, images, publisher, webhooks)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker setup failed")
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.Worker.MetricsAddr).Msg("worker metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("worker metrics server failed")
		}
	}()

	logger.Info().
		Int("concurrency", cfg.Worker.Concurrency).
		Int("max_active_exports", cfg.Worker.MaxActiveExports).
		Str("queue", cfg.Queue.Name).
		Str("redis", cfg.Queue.RedisAddr).
		Bool("object_storage", cfg.Storage.Enabled).
		Msg("starting worker")

	// Run blocks until SIGINT or SIGTERM and drains in-flight tasks.
	runErr := srv.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	if err := publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("event publisher close failed")
	}
	if err := closeStore(); err != nil {
		logger.Error().Err(err).Msg("image store close failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown failed")
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("worker failed")
	}
}
