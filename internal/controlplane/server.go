// Package controlplane serves a loopback HTTP API over the client: path
// resolution, conflict checks, move and copy, uploads with a websocket
// progress stream, and the prometheus metrics.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openmined/storagebrowser/internal/utils"
)

type Config struct {
	Addr      string
	AuthToken string
	RateLimit string
}

type Server struct {
	config *Config
	server *http.Server
}

func NewServer(config *Config, h *Handlers) (*Server, error) {
	routes, err := SetupRoutes(h, RouteConfig{
		AuthToken: config.AuthToken,
		RateLimit: config.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("control plane routes: %w", err)
	}

	return &Server{
		config: config,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           routes,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}, nil
}

// Start serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("control plane listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", ln.Addr()), "token", utils.MaskSecret(s.config.AuthToken))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control plane serve: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}
