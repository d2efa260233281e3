// Package server serves the analysis engine over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/deepscan/internal/metrics"
	"github.com/ppiankov/deepscan/internal/model"
	"github.com/ppiankov/deepscan/internal/pipeline"
	"github.com/ppiankov/deepscan/internal/session"
	"github.com/ppiankov/deepscan/internal/worker"
)

// SessionHeader scopes requests to a session; at most one analysis per session is in flight
const SessionHeader = "X-Session-ID"

// multipartOverhead is allowed on top of the file size limit for form boundaries and headers
const multipartOverhead = 1 << 20

// Options holds the collaborators of a Server
type Options struct {
	Pipeline *pipeline.Pipeline
	Intake   *pipeline.Intake
	Sessions *session.Store
	Recorder *metrics.Recorder // nil disables /metrics
	Logger   *slog.Logger      // nil = discard
}

// Server is the HTTP front-end
type Server struct {
	cfg      model.ServerConfig
	pipeline *pipeline.Pipeline
	intake   *pipeline.Intake
	sessions *session.Store
	limiter  *worker.Limiter
	recorder *metrics.Recorder
	logger   *slog.Logger
	started  time.Time
}

// New creates a server from configuration and collaborators
func New(cfg *model.Config, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore(cfg.Server.SessionTTL, time.Minute)
	}

	intake := opts.Intake
	if intake == nil {
		intake = pipeline.NewIntake(cfg.Intake.MaxBytes)
	}

	s := &Server{
		cfg:      cfg.Server,
		pipeline: opts.Pipeline,
		intake:   intake,
		sessions: sessions,
		limiter:  worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		recorder: opts.Recorder,
		logger:   logger,
		started:  time.Now(),
	}

	if s.recorder != nil {
		// a second server on the same recorder keeps the first gauge
		_ = s.recorder.RegisterGauge("sessions_active", "Live analysis sessions.", func() float64 {
			return float64(s.sessions.Len())
		})
	}

	return s
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/analyze/{type}", s.instrument("/v1/analyze", s.rateLimited(s.handleAnalyze)))
	mux.Handle("GET /v1/sessions/{id}", s.instrument("/v1/sessions", s.handleSessionGet))
	mux.Handle("DELETE /v1/sessions/{id}", s.instrument("/v1/sessions", s.handleSessionDelete))
	mux.Handle("GET /healthz", s.instrument("/healthz", s.handleHealth))
	if s.recorder != nil {
		mux.Handle("GET /metrics", s.recorder.Handler())
	}
	return mux
}

// Run serves on ln until ctx ends, then cancels pending analyses and shuts down gracefully
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		s.sessions.Close()

		grace := s.cfg.ShutdownGrace
		if grace <= 0 {
			grace = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ListenAndServe listens on the configured address and calls Run
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Run(ctx, ln)
}
