package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/download"
	"github.com/dunamismax/imaginify/internal/events"
	"github.com/dunamismax/imaginify/internal/queue"
	"github.com/dunamismax/imaginify/internal/session"
	"github.com/dunamismax/imaginify/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultUserIDHeader = "X-User-ID"

type renderFetcher interface {
	Fetch(ctx context.Context, rawURL, title string) (download.Attachment, error)
}

type exportEnqueuer interface {
	EnqueueExport(ctx context.Context, payload queue.ExportImagePayload) (*asynq.TaskInfo, error)
}

type exportLinker interface {
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	PresignedGetURL(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error)
}

// Dependencies are the collaborators behind the HTTP surface. Exports,
// Storage and RateLimiter may be nil.
type Dependencies struct {
	Sessions    *session.Manager
	Images      store.ImageStore
	Downloads   renderFetcher
	Exports     exportEnqueuer
	Storage     exportLinker
	Events      events.Publisher
	RateLimiter RateLimiter
}

type Options struct {
	UserIDHeader   string
	AllowedOrigins []string
	ExportLinkTTL  time.Duration
}

type Server struct {
	logger       zerolog.Logger
	sessions     *session.Manager
	images       store.ImageStore
	downloads    renderFetcher
	exports      exportEnqueuer
	storage      exportLinker
	events       events.Publisher
	rateLimiter  RateLimiter
	userIDHeader string
	linkTTL      time.Duration
	metrics      *metrics
	tracer       trace.Tracer
	router       chi.Router
}

func NewServer(logger zerolog.Logger, deps Dependencies, opts Options) *Server {
	if strings.TrimSpace(opts.UserIDHeader) == "" {
		opts.UserIDHeader = defaultUserIDHeader
	}
	if opts.ExportLinkTTL <= 0 {
		opts.ExportLinkTTL = 15 * time.Minute
	}
	if deps.Events == nil {
		deps.Events = events.New(nil, "", logger)
	}
	if deps.Downloads == nil {
		deps.Downloads = download.NewClient(download.Config{})
	}

	s := &Server{
		logger:       logger,
		sessions:     deps.Sessions,
		images:       deps.Images,
		downloads:    deps.Downloads,
		exports:      deps.Exports,
		storage:      deps.Storage,
		events:       deps.Events,
		rateLimiter:  deps.RateLimiter,
		userIDHeader: opts.UserIDHeader,
		linkTTL:      opts.ExportLinkTTL,
		metrics:      newMetrics(),
		tracer:       otel.Tracer("imaginify/api"),
	}
	s.router = s.routes(opts.AllowedOrigins)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(allowedOrigins []string) chi.Router {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", s.userIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.metrics.withHTTPMetrics)
	r.Use(s.withTracing)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/transformations", s.handleListTransformations)
		r.Get("/aspect-ratios", s.handleListAspectRatios)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Use(s.withRateLimit)

			r.Post("/sessions", s.handleCreateSession)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/upload", s.handleUpload)
				r.Post("/fields", s.handleEditField)
				r.Post("/aspect-ratio", s.handleSelectAspectRatio)
				r.Post("/apply", s.handleApply)
				r.Post("/save", s.handleSave)
			})

			r.Get("/images", s.handleListImages)
			r.Route("/images/{imageID}", func(r chi.Router) {
				r.Get("/", s.handleGetImage)
				r.Delete("/", s.handleDeleteImage)
				r.Get("/download", s.handleDownload)
				r.Post("/export", s.handleExport)
				r.Get("/export", s.handleExportStatus)
			})
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTransformations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"transformations": domain.TransformationCatalog()})
}

func (s *Server) handleListAspectRatios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"aspect_ratios": domain.AspectRatioOptions()})
}

func (s *Server) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Str("image_id", event.ImageID).Msg("event publish failed")
	}
}

// writeError maps the domain error kinds onto HTTP statuses. Server-side
// failures are logged and reported without internals.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status < http.StatusInternalServerError {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")

	message := "internal error"
	switch {
	case errors.Is(err, domain.ErrExternalService):
		message = "upstream service failed"
	case errors.Is(err, domain.ErrPersistence):
		message = "failed to persist image"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads one JSON value. An empty body leaves into untouched when
// optional is set.
func decodeJSON(r *http.Request, into any, optional bool) error {
	const maxBodyBytes = 1 << 20
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrValidation, err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: invalid JSON body: multiple JSON values are not allowed", domain.ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
