package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"fincas-assistant/internal/infra/api"
	"fincas-assistant/internal/infra/metrics"
)

const (
	healthPath  = "/healthz"
	metricsPath = "/metrics"

	checkTimeout    = 3 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Checker is a dependency probed by /healthz.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type Options struct {
	Port int
	// WebhookPath and Webhook mount the Telegram webhook; both empty in polling mode.
	WebhookPath string
	Webhook     http.Handler
	Checkers    []Checker
	// ServeMetrics exposes /metrics on this server too.
	ServeMetrics   bool
	RequestTimeout time.Duration
}

// NewRouter builds the chi router with the guard middleware stack.
func NewRouter(opts Options, logger *zerolog.Logger) chi.Router {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(
		api.TraceID(),
		api.RequestLog(logger, healthPath, metricsPath),
		api.Recover(logger),
		api.Timeout(opts.RequestTimeout),
	)

	r.Get(healthPath, healthHandler(opts.Checkers, logger))
	if opts.ServeMetrics {
		r.Method(http.MethodGet, metricsPath, metrics.Handler())
	}
	if opts.WebhookPath != "" && opts.Webhook != nil {
		r.With(api.Route("/{token}")).Handle(opts.WebhookPath, opts.Webhook)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler reports each checker as "ok" or "error"; failure details go
// to the log only.
func healthHandler(checkers []Checker, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		rep := healthReport{Status: "ok", Checks: map[string]string{}}
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, c := range checkers {
			wg.Add(1)
			go func(c Checker) {
				defer wg.Done()
				res := "ok"
				if err := c.Check(ctx); err != nil {
					res = "error"
					logger.Warn().Err(err).Str("check", c.Name()).Msg("health check failed")
				}
				mu.Lock()
				rep.Checks[c.Name()] = res
				if res != "ok" {
					rep.Status = "degraded"
				}
				mu.Unlock()
			}(c)
		}
		wg.Wait()

		code := http.StatusOK
		if rep.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(rep)
	}
}

// Server is an http.Server bound to a context-driven lifecycle.
type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

func NewServer(opts Options, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Int("port", opts.Port).Logger()
	return newServer(opts.Port, NewRouter(opts, &l), &l)
}

// NewMetricsServer serves only /metrics and a dependency-free /healthz.
func NewMetricsServer(port int, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "MetricsServer").Int("port", port).Logger()
	return newServer(port, NewRouter(Options{ServeMetrics: true}, &l), &l)
}

func newServer(port int, h http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger,
	}
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Msg("HTTP server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info().Msg("HTTP server stopped")
	return nil
}
