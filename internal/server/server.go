// Package server exposes the augmentation preview over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"augplayground/pkg/bids"
	"augplayground/pkg/config"
	"augplayground/pkg/hdf5conv"
	"augplayground/pkg/ingest"
	"augplayground/pkg/pipeline"
	"augplayground/pkg/store"
)

// shutdownTimeout bounds graceful shutdown in Start
const shutdownTimeout = 10 * time.Second

// Server wires the stores and codecs behind a chi router
type Server struct {
	Router *chi.Mux

	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	resolver  *bids.Resolver
	loader    *ingest.Loader
	converter *hdf5conv.Converter
	executor  *pipeline.Executor
	metrics   *Metrics
	index     *template.Template
}

// Option customizes a Server
type Option func(*Server)

// WithConverter replaces the HDF5 converter
func WithConverter(c *hdf5conv.Converter) Option {
	return func(s *Server) { s.converter = c }
}

// WithStore replaces the volume store built from config
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

// New builds the server and its routes from cfg
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		resolver: bids.NewResolver(cfg.BIDS.Root),
		loader:   ingest.NewLoader(cfg.Upload.TempDir, cfg.Upload.MaxBytes),
		metrics:  NewMetrics(),
		index:    template.Must(template.ParseFS(templateFS, "templates/index.html")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = store.New(store.Policy{Capacity: cfg.Store.Capacity, TTL: cfg.Store.TTL}, func(id string, _ *store.Entry) {
			logger.Debug("volume evicted", slog.String("volume_id", id))
		})
	}
	if s.converter == nil {
		s.converter = hdf5conv.NewConverter(nil)
	}
	s.executor = pipeline.NewExecutor(pipeline.WithObserver(s.metrics))

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(cfg.Server.RequestTimeout))
	r.Use(middleware.Recoverer)

	if cfg.Telemetry.Enabled {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, cfg.Telemetry.ServiceName)
		})
	}

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/bids/tree", s.handleBIDSTree)
		r.Get("/bids/file", s.handleBIDSFile)
		r.Post("/bids/select", s.handleBIDSSelect)
		r.Post("/volume", s.handleUpload)
		r.Post("/convert-h5", s.handleConvertH5)
		r.Post("/preview", s.handlePreview)
		r.Post("/export-config", s.handleExportConfig)
		r.Post("/import-snippet", s.handleImportSnippet)
	})

	s.Router = r
	return s
}

// Addr is the listen address from config
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Address, s.cfg.Server.Port)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			slog.String("addr", srv.Addr),
			slog.String("bids_root", s.cfg.BIDS.Root),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
