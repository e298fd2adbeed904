// Package server exposes the download, staging and commit flow over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sevigo/gwdata/datasource"
	"github.com/sevigo/gwdata/schema"
)

const shutdownTimeout = 5 * time.Second

// Config holds the dependencies of the HTTP server.
type Config struct {
	Addr   string
	Remote *datasource.Remote
	// Proxy serves /gw/proxy_view. The route is not registered when nil.
	Proxy  http.Handler
	Logger *slog.Logger
}

type Server struct {
	addr     string
	remote   *datasource.Remote
	proxy    http.Handler
	logger   *slog.Logger
	notifier *commitNotifier
	handler  http.Handler
}

// NewServer creates the server and subscribes it to commits.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:     cfg.Addr,
		remote:   cfg.Remote,
		proxy:    cfg.Proxy,
		logger:   logger.With("component", "server"),
		notifier: newCommitNotifier(),
	}
	s.remote.Staging().SubscribeCommitted(func(schema.Snapshot) {
		s.notifier.broadcast()
	})
	s.handler = s.routes()
	return s
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.proxy != nil {
		r.Handle("/gw/proxy_view", s.proxy)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/charsets", s.handleCharsets)
		r.Get("/resource", s.handleResource)

		r.Get("/download", s.handleDownloadState)
		r.Post("/download", s.handleDownload)
		r.Post("/download/resource", s.handleDownloadResource)

		r.Route("/datasets", func(r chi.Router) {
			r.Get("/temporary", s.handleTemporary)
			r.Put("/temporary/name", s.handleRename)
			r.Get("/temporary/preview", s.handlePreview)
			r.Post("/commit", s.handleCommit)
			r.Get("/committed", s.handleCommitted)
			r.Get("/committed/events", s.handleCommitEvents)
		})
	})

	return r
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
