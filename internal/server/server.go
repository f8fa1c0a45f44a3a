// Package server exposes the gateway over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
)

// RequestObserver is told about every served request. metrics.Metrics satisfies it.
type RequestObserver interface {
	ObserveRequest(route, method string, status int, took time.Duration)
}

// Options tune the router.
type Options struct {
	Logger       logger.Logger
	Observer     RequestObserver
	Timeout      time.Duration
	ClientOrigin string
	Version      string
	Environment  string
	StartedAt    time.Time

	// Metrics, when set, is mounted at /metrics outside the /api prefix.
	Metrics http.Handler
}

// NewRouter wires middleware and routes. Middleware order, outermost first:
// request id, access log, recover, CORS, timeout.
func NewRouter(svc Service, opts Options) http.Handler {
	log := logger.Ensure(opts.Logger)
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}

	h := &handlers{
		svc:       svc,
		log:       log,
		startedAt: opts.StartedAt,
		version:   opts.Version,
		env:       opts.Environment,
	}

	r := chi.NewRouter()
	r.Use(
		requestID,
		accessLog(log, opts.Observer),
		recoverer(log),
	)
	if opts.ClientOrigin != "" {
		r.Use(corsFor(opts.ClientOrigin))
	}
	r.Use(timeout(opts.Timeout))

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", h.health)
		api.Get("/news", h.news)
		api.Get("/news/top", h.news)
		api.Get("/quotes", h.quotes)
		api.Get("/weather", h.weather)
	})

	return r
}

// New builds an http.Server for handler.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Run serves srv until ctx ends or serving fails, then shuts down within shutdownTimeout.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, log logger.Logger) error {
	log = logger.Ensure(log)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return serve(ctx, srv, ln, shutdownTimeout, log)
}

func serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration, log logger.Logger) error {
	log.InfoObj("http server listening", "http_listen_start", map[string]any{"addr": ln.Addr().String()})

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.InfoObj("shutdown requested", "shutdown_requested", nil)
	case err := <-serveErr:
		if err != nil {
			log.ErrorObj("http server failed", "http_serve_failed", map[string]any{"error": err})
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WarnObj("http shutdown incomplete", "http_shutdown_incomplete", map[string]any{"error": err})
		return errors.Join(runErr, err)
	}
	log.InfoObj("http server stopped", "http_stopped", nil)
	return runErr
}
