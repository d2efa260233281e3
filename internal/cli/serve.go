package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/deepscan/internal/metrics"
	"github.com/ppiankov/deepscan/internal/model"
	"github.com/ppiankov/deepscan/internal/pipeline"
	"github.com/ppiankov/deepscan/internal/server"
	"github.com/ppiankov/deepscan/internal/session"
)

var (
	addr           string
	maxConnections int
	sessionTTL     time.Duration
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Serve exposes the analysis engine over HTTP:

  POST   /v1/analyze/{image|video|audio}   multipart upload, field named after the type
  GET    /v1/sessions/{id}                 last report of a session
  DELETE /v1/sessions/{id}                 cancel and discard a session
  GET    /healthz                          liveness
  GET    /metrics                          Prometheus metrics

Send X-Session-ID to scope requests to a session. A new upload on a
session cancels the analysis still pending on it.

Example:
  deepscan serve
  deepscan serve --addr 127.0.0.1:9090 --delay 1s`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindAnalysisFlags(cmd, args); err != nil {
			return err
		}
		return bindFlags(cmd, viper.GetViper(), map[string]string{
			"server.addr":            "addr",
			"server.max_connections": "max-connections",
			"server.session_ttl":     "session-ttl",
		})
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := model.DefaultConfig()
	serveCmd.Flags().StringVar(&addr, "addr", defaults.Server.Addr, "listen address")
	serveCmd.Flags().IntVar(&maxConnections, "max-connections", defaults.Server.MaxConnections, "maximum concurrent connections (0 = unlimited)")
	serveCmd.Flags().DurationVar(&sessionTTL, "session-ttl", defaults.Server.SessionTTL, "idle time before a session expires")

	addAnalysisFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, cfg.Output.Verbose, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()

	p, err := buildPipeline(cfg, logger, pipeline.WithObserver(recorder))
	if err != nil {
		return err
	}

	srv := server.New(cfg, server.Options{
		Pipeline: p,
		Intake:   pipeline.NewIntake(cfg.Intake.MaxBytes),
		Sessions: session.NewStore(cfg.Server.SessionTTL, time.Minute),
		Recorder: recorder,
		Logger:   logger,
	})

	logger.Info("starting server",
		"addr", cfg.Server.Addr,
		"delay", cfg.Analysis.Delay,
		"max_bytes", cfg.Intake.MaxBytes,
		"session_ttl", cfg.Server.SessionTTL,
	)

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
