// Package server runs the smsrelay HTTP listeners until their context ends.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/xraph/smsrelay/internal/config"
	"github.com/xraph/smsrelay/ratelimit"
)

// Server owns the main listener and the optional metrics listener.
type Server struct {
	httpServer      *http.Server
	metricsServer   *http.Server
	limiter         *ratelimit.Limiter
	pruneEvery      time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h on its own listener at addr.
func WithMetrics(addr string, h http.Handler) Option {
	return func(s *Server) {
		if addr == "" {
			return
		}
		s.metricsServer = &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
}

// WithLimiterPruning drops idle rate-limit keys every interval.
func WithLimiterPruning(l *ratelimit.Limiter, every time.Duration) Option {
	return func(s *Server) {
		s.limiter = l
		s.pruneEvery = every
	}
}

// New creates a server for handler.
func New(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on the configured address and blocks until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 2)

	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.metricsServer != nil {
		go func() {
			s.logger.Info("metrics server starting", "addr", s.metricsServer.Addr)
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	if s.limiter != nil && s.pruneEvery > 0 {
		go s.prune(ctx)
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return err
	}
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")
	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if len(errs) == 0 {
		s.logger.Info("server shut down gracefully")
	}
	return errors.Join(errs...)
}

func (s *Server) prune(ctx context.Context) {
	ticker := time.NewTicker(s.pruneEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Prune(); n > 0 {
				s.logger.Debug("rate limiter pruned", "keys", n)
			}
		}
	}
}
