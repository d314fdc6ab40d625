// Package server provides the HTTP API for Shirabe.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/indexer"
	"github.com/hyperjump/shirabe/internal/search"
	"github.com/hyperjump/shirabe/internal/session"
	"go.uber.org/zap"
)

// Server is the HTTP server for the Shirabe API.
type Server struct {
	sessions *session.Registry
	indexer  *indexer.Indexer
	engine   *search.Engine
	config   *config.Config
	logger   *zap.Logger
	cache    *embedding.CachedEmbedder
	router   chi.Router
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithEmbeddingCache reports the embedding cache in GET /api/v1/status.
func WithEmbeddingCache(c *embedding.CachedEmbedder) Option {
	return func(s *Server) { s.cache = c }
}

// NewServer creates a server with the given dependencies. A nil logger discards output.
func NewServer(
	sessions *session.Registry,
	idx *indexer.Indexer,
	engine *search.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sessions: sessions,
		indexer:  idx,
		engine:   engine,
		config:   cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", s.handleCreateSession)
		r.Post("/session/start", s.handleCreateSession)
		r.Get("/session/{id}", s.handleGetSession)
		r.Delete("/session/{id}", s.handleEndSession)
		r.Put("/session/end/{id}", s.handleEndSession)

		r.Post("/search/{sessionId}/doc", s.handleAddDocument)
		r.Post("/search/{sessionId}/query", s.handleQuery)

		r.Post("/extract", s.handleExtract)

		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
