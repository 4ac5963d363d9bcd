package api

import (
	"context"
	"net/http"
	"time"

	"github.com/playbook/outreach/internal/archive"
	"github.com/playbook/outreach/internal/config"
	"github.com/playbook/outreach/internal/pkg/logger"
	"github.com/playbook/outreach/internal/service/outreach"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Outreach *outreach.Service
	Archive  archive.Archiver
	Health   *HealthChecker
	Logger   *logger.Logger
}

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Archive == nil {
		deps.Archive = archive.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	return &Server{
		config:  cfg,
		handler: SetupRoutes(cfg, NewOutreachHandler(deps.Outreach, deps.Archive, deps.Logger), deps.Health),
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeout(),
		ReadHeaderTimeout: 15 * time.Second,
		// A run request holds the connection for the whole paced send loop.
		WriteTimeout: s.config.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
