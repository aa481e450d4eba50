// Package api exposes the rehearsal pipeline over HTTP: project CRUD,
// script submission, document upload, retryable synthesis and alignment,
// character flags, audio artifact serving, and a websocket stream of job
// progress events.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/readingpartner/scriptpipe/internal/blob"
	"github.com/readingpartner/scriptpipe/internal/health"
	"github.com/readingpartner/scriptpipe/internal/observe"
	"github.com/readingpartner/scriptpipe/internal/pipeline"
	"github.com/readingpartner/scriptpipe/internal/store"
)

// Config carries the Server's collaborators.
type Config struct {
	Store    store.Store
	Blobs    blob.Store
	Pipeline *pipeline.Pipeline
	Runner   *pipeline.Runner
	Metrics  *observe.Metrics

	// MaxUploadBytes bounds the request body accepted on document upload.
	// Zero means the default 5 MiB plus multipart overhead.
	MaxUploadBytes int64

	// Health lists readiness checkers exposed on /readyz.
	Health []health.Checker

	Logger *slog.Logger
}

const defaultMaxUpload = 5<<20 + 64<<10

// Server is the HTTP front of the pipeline. Construct with [New] and mount
// [Server.Router].
type Server struct {
	store     store.Store
	blobs     blob.Store
	pipeline  *pipeline.Pipeline
	runner    *pipeline.Runner
	metrics   *observe.Metrics
	health    *health.Handler
	maxUpload int64
	log       *slog.Logger
}

// New assembles a Server from cfg.
func New(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Server{
		store:     cfg.Store,
		blobs:     cfg.Blobs,
		pipeline:  cfg.Pipeline,
		runner:    cfg.Runner,
		metrics:   cfg.Metrics,
		health:    health.New(cfg.Health...),
		maxUpload: cfg.MaxUploadBytes,
		log:       cfg.Logger,
	}
}

// Router builds the chi router with all routes and middleware attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.handleCreateProject)
			r.Get("/", s.handleListProjects)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Patch("/", s.handleRenameProject)
				r.Delete("/", s.handleDeleteProject)

				r.Post("/script", s.handleSubmitScript)
				r.Post("/document", s.handleUploadDocument)
				r.Post("/synthesis", s.handleRetrySynthesis)
				r.Post("/alignment", s.handleRetryAlignment)

				r.Get("/characters", s.handleListCharacters)
				r.Put("/characters/{name}/counter-reader", s.handleSetCounterReader)
				r.Put("/own-character", s.handleSetOwnCharacter)
			})
		})

		r.Route("/jobs/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Get("/events", s.handleJobEvents)
		})
	})

	r.Get("/audio/{object}", s.handleGetAudio)

	return r
}
