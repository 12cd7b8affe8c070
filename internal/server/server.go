package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/dreschagin/static-server/internal/auth"
	"github.com/dreschagin/static-server/internal/headers"
	"github.com/dreschagin/static-server/internal/httpx"
	staticmetrics "github.com/dreschagin/static-server/internal/metrics"
	"github.com/dreschagin/static-server/internal/ratelimit"
	"github.com/dreschagin/static-server/internal/static"
	"github.com/dreschagin/static-server/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server owns the content listener and the optional admin listener.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	out       io.Writer
	headers   headers.Set
	responder *static.Responder

	content *http.Server
	admin   *http.Server

	contentLn net.Listener
	adminLn   net.Listener

	ready atomic.Bool
}

// New builds the handler chains. out receives the startup banner.
func New(cfg *config.Config, logger *slog.Logger, out io.Writer) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := staticmetrics.New(registry)
	set := headers.Isolation()

	responder, err := static.New(static.Options{
		Root:           cfg.Content.RootDir,
		IndexFile:      cfg.Content.IndexFile,
		DiagnosticPath: cfg.Content.DiagnosticPath,
		Headers:        set,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		return nil, err
	}

	var contentHandler http.Handler = responder
	if cfg.RateLimit.Enabled {
		contentHandler = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware(metrics, contentHandler)
	}
	contentHandler = metrics.Middleware(cfg.Content.DiagnosticPath, contentHandler)
	contentHandler = httpx.WithRequestID(contentHandler)
	contentHandler = httpx.WithLogging(logger, contentHandler)
	contentHandler = httpx.WithRecovery(logger, contentHandler)
	contentHandler = headers.Middleware(set, contentHandler)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		out:       out,
		headers:   set,
		responder: responder,
		content: &http.Server{
			Handler:      contentHandler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			// "OPTIONS *" must reach the chain so it gets the header set too.
			DisableGeneralOptionsHandler: true,
		},
	}

	if cfg.Admin.Addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
			if !s.ready.Load() {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		s.admin = &http.Server{
			Handler:      auth.Middleware(cfg.Admin.BearerToken, metrics, mux),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
	}

	return s, nil
}

// Handler returns the content handler chain.
func (s *Server) Handler() http.Handler {
	return s.content.Handler
}

// Listen binds the configured addresses.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Addr(), err)
	}
	s.contentLn = ln

	if s.admin != nil {
		adminLn, err := net.Listen("tcp", s.cfg.Admin.Addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on admin %s: %w", s.cfg.Admin.Addr, err)
		}
		s.adminLn = adminLn
	}

	return nil
}

// Addr is the bound content address; nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.contentLn == nil {
		return nil
	}
	return s.contentLn.Addr()
}

// AdminAddr is the bound admin address; nil when the admin listener is off.
func (s *Server) AdminAddr() net.Addr {
	if s.adminLn == nil {
		return nil
	}
	return s.adminLn.Addr()
}

// Run binds, serves, and shuts down gracefully once ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		_ = s.responder.Close()
		return err
	}
	return s.Serve(ctx)
}

// Serve serves on listeners bound by Listen until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	if s.contentLn == nil {
		return errors.New("server: Serve called before Listen")
	}
	defer s.responder.Close()

	errCh := make(chan error, 2)

	go func() {
		if err := s.content.Serve(s.contentLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("content server: %w", err)
		}
	}()

	if s.admin != nil {
		go func() {
			s.logger.Info("admin server started", "addr", s.adminLn.Addr().String())
			if err := s.admin.Serve(s.adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin server: %w", err)
			}
		}()
	}

	baseURL := "http://" + s.contentLn.Addr().String()
	s.ready.Store(true)
	s.logger.Info("static server started",
		"addr", s.contentLn.Addr().String(),
		"root", s.cfg.Content.RootDir,
	)
	Banner(s.out, baseURL, s.cfg.Content.DiagnosticPath, s.headers)

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		s.logger.Error("server failed", "error", serveErr)
	}
	s.ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.content.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("failed to shutdown content server", "error", err)
	}
	if s.admin != nil {
		if err := s.admin.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shutdown admin server", "error", err)
		}
	}

	return serveErr
}
