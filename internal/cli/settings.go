package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/deepscan/internal/model"
	"github.com/ppiankov/deepscan/internal/pipeline"
	"github.com/ppiankov/deepscan/internal/score"
)

// setDefaults mirrors model.DefaultConfig so every key is known to viper,
// which AutomaticEnv needs to resolve nested keys on Unmarshal
func setDefaults(v *viper.Viper) {
	d := model.DefaultConfig()

	v.SetDefault("analysis.delay", d.Analysis.Delay)
	v.SetDefault("analysis.seed", d.Analysis.Seed)

	v.SetDefault("scoring.fake_threshold", d.Scoring.FakeThreshold)
	v.SetDefault("scoring.suspicious_threshold", d.Scoring.SuspiciousThreshold)
	v.SetDefault("scoring.suspect_threshold", d.Scoring.SuspectThreshold)
	v.SetDefault("scoring.catalog_file", d.Scoring.CatalogFile)

	v.SetDefault("intake.max_bytes", d.Intake.MaxBytes)

	v.SetDefault("concurrency.workers", d.Concurrency.Workers)

	v.SetDefault("rate_limiting.requests_per_second", d.RateLimiting.RequestsPerSecond)
	v.SetDefault("rate_limiting.burst_size", d.RateLimiting.BurstSize)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.shutdown_grace", d.Server.ShutdownGrace)

	v.SetDefault("output.verbose", d.Output.Verbose)
	v.SetDefault("output.include_footer", d.Output.IncludeFooter)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// loadConfig resolves the effective configuration and validates it
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// bindFlags binds command-local flags to config keys. It runs in PreRunE so
// commands sharing a flag name do not overwrite each other's binding.
func bindFlags(cmd *cobra.Command, v *viper.Viper, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// newLogger builds the process logger; verbose forces debug level
func newLogger(cfg model.LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// buildPipeline wires the engine, loading a custom catalog when configured
func buildPipeline(cfg *model.Config, logger *slog.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	opts = append(opts, pipeline.WithLogger(logger))

	if cfg.Scoring.CatalogFile != "" {
		catalog, err := score.LoadCatalogFile(cfg.Scoring.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		opts = append(opts, pipeline.WithCatalog(catalog))
	}

	return pipeline.NewPipeline(cfg, opts...), nil
}

// parseSelected turns a --type value into a media type; empty means detect from content
func parseSelected(s string) (model.MediaType, error) {
	if s == "" {
		return "", nil
	}
	return model.ParseMediaType(s)
}
