package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/imaginify/internal/api"
	"github.com/dunamismax/imaginify/internal/cdn"
	"github.com/dunamismax/imaginify/internal/config"
	"github.com/dunamismax/imaginify/internal/download"
	"github.com/dunamismax/imaginify/internal/events"
	"github.com/dunamismax/imaginify/internal/logging"
	"github.com/dunamismax/imaginify/internal/queue"
	"github.com/dunamismax/imaginify/internal/ratelimit"
	"github.com/dunamismax/imaginify/internal/session"
	"github.com/dunamismax/imaginify/internal/storage"
	"github.com/dunamismax/imaginify/internal/store"
	"github.com/dunamismax/imaginify/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env, "imaginify-api")

	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "imaginify-api",
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
	if ms, ok := images.(*store.MongoImageStore); ok {
		go func() {
			if err := ms.EnsureIndexes(ctx); err != nil {
				logger.Warn().Err(err).Msg("ensure mongodb indexes failed")
			}
		}()
	}

	urls := cdn.NewBuilder(cfg.Editor.CloudName)
	urls.BaseURL = cfg.Editor.CDNBaseURL

	sessions := session.NewManager(images, urls, session.Config{
		TTL:         cfg.Editor.SessionTTL,
		QuietWindow: cfg.Editor.QuietWindow,
	}, logger)
	go sessions.Run(ctx, session.DefaultSweepInterval)

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	publisher := events.New(cfg.Events.Brokers, cfg.Events.Topic, logger)

	deps := api.Dependencies{
		Sessions:  sessions,
		Images:    images,
		Downloads: download.NewClient(download.Config{}),
		Exports:   queueClient,
		Events:    publisher,
	}

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
		deps.Storage = storageClient
	}

	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		limiter, err := ratelimit.NewTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
		if err != nil {
			logger.Fatal().Err(err).Msg("rate limiter setup failed")
		}
		deps.RateLimiter = limiter
	}

	app := api.NewServer(logger, deps, api.Options{
		UserIDHeader:   cfg.API.UserIDHeader,
		AllowedOrigins: cfg.API.AllowedOrigins,
		ExportLinkTTL:  cfg.Storage.LinkTTL,
	})

	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.API.Addr).
			Str("store", cfg.Database.Driver).
			Str("cloud", cfg.Editor.CloudName).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	sessions.Close()
	if err := queueClient.Close(); err != nil {
		logger.Error().Err(err).Msg("queue client close failed")
	}
	if err := publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("event publisher close failed")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := closeStore(); err != nil {
		logger.Error().Err(err).Msg("image store close failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown failed")
	}
}
