package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"opsboard/internal/config"
	"opsboard/internal/logger"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Server is the HTTP listener with graceful shutdown.
type Server struct {
	server *http.Server
	log    logger.Logger
}

// NewServer binds handler to cfg's address.
func NewServer(cfg config.ServerConfig, handler http.Handler, log logger.Logger) *Server {
	read, write := cfg.ReadTimeout, cfg.WriteTimeout
	if read <= 0 {
		read = defaultReadTimeout
	}
	if write <= 0 {
		write = defaultWriteTimeout
	}
	return &Server{
		server: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           handler,
			ReadTimeout:       read,
			ReadHeaderTimeout: read,
			WriteTimeout:      write,
		},
		log: log,
	}
}

// Addr is the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", logger.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
