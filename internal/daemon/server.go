package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/matheus3301/msgvault/internal/config"
	"github.com/matheus3301/msgvault/internal/httpd"
)

// Server manages the HTTP server lifecycle for an account daemon.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewServer creates the HTTP server bound to the configured address.
// Params.Listen overrides the config; ":0" style addresses work for tests.
func NewServer(p Params, cfg *config.Config, h *httpd.Handlers, logger *zap.Logger) (*Server, error) {
	addr := p.Listen
	if addr == "" {
		addr = cfg.Daemon.Listen
	}
	if addr == "" {
		addr = config.Default().Daemon.Listen
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return &Server{
		httpServer: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start begins serving HTTP requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.Addr()))
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down gracefully until ctx expires, then force-closes so
// long-lived event streams cannot hold the daemon open.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
	}
}
