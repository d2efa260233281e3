package model

import (
	"fmt"
	"runtime"
	"time"
)

// Config is the complete deepscan configuration.
// Precedence: CLI flags > DEEPSCAN_* env > config file > DefaultConfig.
type Config struct {
	Analysis     AnalysisConfig     `yaml:"analysis" mapstructure:"analysis"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Intake       IntakeConfig       `yaml:"intake" mapstructure:"intake"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// AnalysisConfig controls the simulated processing step
type AnalysisConfig struct {
	Delay time.Duration `yaml:"delay" mapstructure:"delay"` // Simulated processing latency
	Seed  uint64        `yaml:"seed" mapstructure:"seed"`   // 0 = nondeterministic
}

// ScoringConfig holds the decision thresholds
type ScoringConfig struct {
	FakeThreshold       int `yaml:"fake_threshold" mapstructure:"fake_threshold"`             // p > this is Fake
	SuspiciousThreshold int `yaml:"suspicious_threshold" mapstructure:"suspicious_threshold"` // p > this is Suspicious
	SuspectThreshold    int `yaml:"suspect_threshold" mapstructure:"suspect_threshold"`       // p > this skews features low and picks the manipulated narrative

	CatalogFile string `yaml:"catalog_file" mapstructure:"catalog_file"` // Optional YAML feature catalog; empty = built-in
}

// IntakeConfig limits what uploads are accepted
type IntakeConfig struct {
	MaxBytes int64 `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// ConcurrencyConfig sizes the batch worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig is applied per media type in batch mode and per client in server mode
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ServerConfig configures the HTTP front-end
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	SessionTTL     time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace" mapstructure:"shutdown_grace"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultMaxBytes is the upload size limit
const DefaultMaxBytes int64 = 10 << 20

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Delay: 3 * time.Second,
		},
		Scoring: ScoringConfig{
			FakeThreshold:       85,
			SuspiciousThreshold: 25,
			SuspectThreshold:    60,
		},
		Intake: IntakeConfig{
			MaxBytes: DefaultMaxBytes,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         10,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxConnections: 256,
			SessionTTL:     30 * time.Minute,
			ReadTimeout:    30 * time.Second,
			ShutdownGrace:  10 * time.Second,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks values that would break the engine's invariants
func (c *Config) Validate() error {
	s := c.Scoring
	for name, v := range map[string]int{
		"fake_threshold":       s.FakeThreshold,
		"suspicious_threshold": s.SuspiciousThreshold,
		"suspect_threshold":    s.SuspectThreshold,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("scoring.%s must be within [0,100], got %d", name, v)
		}
	}
	if s.SuspiciousThreshold >= s.FakeThreshold {
		return fmt.Errorf("scoring.suspicious_threshold (%d) must be below scoring.fake_threshold (%d)",
			s.SuspiciousThreshold, s.FakeThreshold)
	}
	if c.Intake.MaxBytes <= 0 {
		return fmt.Errorf("intake.max_bytes must be positive, got %d", c.Intake.MaxBytes)
	}
	if c.Analysis.Delay < 0 {
		return fmt.Errorf("analysis.delay must not be negative, got %v", c.Analysis.Delay)
	}
	if c.RateLimiting.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limiting.requests_per_second must not be negative, got %v", c.RateLimiting.RequestsPerSecond)
	}
	return nil
}
