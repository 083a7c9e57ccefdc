// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/namespace"
	"github.com/hyperjump/kotae/internal/storage"
)

// Server is the HTTP server for the Kotae API.
type Server struct {
	ingestor *ingest.Ingestor
	engine   *answer.Engine
	registry *namespace.Registry
	catalog  storage.Storage
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. The catalog may be
// nil; document listing and status then report the index stats only.
func NewServer(
	ingestor *ingest.Ingestor,
	engine *answer.Engine,
	registry *namespace.Registry,
	catalog storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingestor: ingestor,
		engine:   engine,
		registry: registry,
		catalog:  catalog,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/namespace/check", s.handleNamespaceCheck)
	r.Post("/api/v1/documents", s.handleUpload)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Post("/api/v1/query", s.handleQuery)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
