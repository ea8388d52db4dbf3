package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dunamismax/imaginify/internal/config"
	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/events"
	"github.com/dunamismax/imaginify/internal/pipeline"
	"github.com/dunamismax/imaginify/internal/queue"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type exportRecorder interface {
	SetExport(ctx context.Context, id, status, key string) error
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

// Server consumes export tasks and records their outcome on the image.
type Server struct {
	logger    zerolog.Logger
	server    *asynq.Server
	sem       chan struct{}
	processor processor
	steps     []pipeline.Step
	images    exportRecorder
	events    events.Publisher
	webhooks  webhookSender
	metrics   *metrics
	tracer    trace.Tracer
}

func NewServer(
	logger zerolog.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	proc *pipeline.Processor,
	images exportRecorder,
	publisher events.Publisher,
	webhooks webhookSender,
) (*Server, error) {
	if proc == nil {
		return nil, errors.New("pipeline processor is required")
	}
	if images == nil {
		return nil, errors.New("image store is required")
	}

	s := newServer(logger, workerCfg, proc, images, publisher, webhooks)
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: workerCfg.Concurrency,
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			LogLevel: asynq.WarnLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn().
					Err(err).
					Str("type", task.Type()).
					Int("retry", retried).
					Int("max_retry", maxRetry).
					Msg("task failed")
			}),
		},
	)
	return s, nil
}

func newServer(
	logger zerolog.Logger,
	workerCfg config.WorkerConfig,
	proc processor,
	images exportRecorder,
	publisher events.Publisher,
	webhooks webhookSender,
) *Server {
	if publisher == nil {
		publisher = events.New(nil, "", logger)
	}
	return &Server{
		logger:    logger,
		sem:       make(chan struct{}, max(1, workerCfg.MaxActiveExports)),
		processor: proc,
		steps:     pipeline.DefaultSteps(workerCfg.ThumbnailWidth),
		images:    images,
		events:    publisher,
		webhooks:  webhooks,
		metrics:   newMetrics(),
		tracer:    otel.Tracer("imaginify/worker"),
	}
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeExportImage, s.handleExportImage)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleExportImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.ExportStatusFailed

	payload, err := queue.ParseExportImagePayload(task)
	if err != nil {
		s.metrics.exportsTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.export_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("image.id", payload.ImageID),
		attribute.Int("export.steps", len(s.steps)),
	)
	defer span.End()
	defer func() {
		s.metrics.exportDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.exportsTotal.WithLabelValues(outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.metrics.activeExports.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeExports.Dec()
	}()

	log := s.logger.With().Str("image_id", payload.ImageID).Logger()
	log.Info().Str("render_url", payload.RenderURL).Msg("exporting image")

	s.recordExport(ctx, payload.ImageID, domain.ExportStatusProcessing, "")

	result, err := s.processor.Process(ctx, pipeline.Request{
		ImageID:   payload.ImageID,
		Title:     payload.Title,
		RenderURL: payload.RenderURL,
		Steps:     s.steps,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		log.Error().Err(err).Msg("export failed")

		s.recordExport(ctx, payload.ImageID, domain.ExportStatusFailed, "")
		s.publish(ctx, events.Event{
			Type:    events.TypeImageExportFailed,
			ImageID: payload.ImageID,
			Owner:   payload.Owner,
			Status:  domain.ExportStatusFailed,
			Error:   err.Error(),
		})
		_ = s.dispatchWebhook(ctx, payload, events.TypeImageExportFailed, map[string]any{
			"image_id":     payload.ImageID,
			"status":       domain.ExportStatusFailed,
			"requested_at": payload.RequestedAt,
			"failed_at":    time.Now().UTC(),
			"error":        err.Error(),
		})
		if errors.Is(err, domain.ErrValidation) {
			return fmt.Errorf("export image: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("export image: %w", err)
	}

	key := result.Primary()
	s.recordExport(ctx, payload.ImageID, domain.ExportStatusSucceeded, key)
	for _, out := range result.Outputs {
		s.metrics.outputBytesTotal.Add(float64(out.Bytes))
	}
	s.metrics.outputsTotal.Add(float64(len(result.Outputs)))
	log.Info().Str("key", key).Int("outputs", len(result.Outputs)).Msg("export stored")

	s.publish(ctx, events.Event{
		Type:      events.TypeImageExported,
		ImageID:   payload.ImageID,
		Owner:     payload.Owner,
		Status:    domain.ExportStatusSucceeded,
		ObjectKey: key,
	})
	if err := s.dispatchWebhook(ctx, payload, events.TypeImageExported, map[string]any{
		"image_id":     payload.ImageID,
		"status":       domain.ExportStatusSucceeded,
		"key":          key,
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
		"outputs":      result.Outputs,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.ExportStatusSucceeded
	span.SetStatus(codes.Ok, "exported")
	return nil
}

func (s *Server) recordExport(ctx context.Context, imageID, status, key string) {
	if err := s.images.SetExport(ctx, imageID, status, key); err != nil {
		s.logger.Warn().Err(err).Str("image_id", imageID).Str("status", status).Msg("export status update failed")
	}
}

func (s *Server) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Str("image_id", event.ImageID).Msg("event publish failed")
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.ExportImagePayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhooks == nil {
		return nil
	}
	if err := s.webhooks.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Warn().Err(err).Str("image_id", payload.ImageID).Str("event", event).Msg("webhook delivery failed")
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}
