// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// ErrAPIKeyRequired is returned when GEMINI_API_KEY is not set.
var ErrAPIKeyRequired = errors.New("config: GEMINI_API_KEY is required")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Generative media provider settings
	GeminiAPIKey string `env:"GEMINI_API_KEY, required" json:"-"` // Masked in JSON
	VideoModel   string `env:"VIDEO_MODEL, default=veo-3.1-generate-preview" json:"video_model"`
	MusicModel   string `env:"MUSIC_MODEL, default=lyria-002" json:"music_model"`

	// Ad generation settings
	AdDurationSec int `env:"AD_DURATION_SEC, default=8" json:"ad_duration_sec"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/adgen" json:"temp_dir"`

	// Sweeper settings. A zero interval disables the background sweep and
	// leaves all progress caller-driven.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL, default=0" json:"sweep_interval"`
	JobMaxAge     time.Duration `env:"JOB_MAX_AGE, default=1h" json:"job_max_age"`

	// Optional S3 settings for publishing final artifacts
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 publishing configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// SweepEnabled returns true if the background sweeper should run.
func (c *Config) SweepEnabled() bool {
	return c.SweepInterval > 0
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "GEMINI_API_KEY") {
			return nil, ErrAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return ErrAPIKeyRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values
// masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, VideoModel: %s, MusicModel: %s, AdDurationSec: %d, TempDir: %s, SweepInterval: %s, JobMaxAge: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.VideoModel,
		c.MusicModel,
		c.AdDurationSec,
		c.TempDir,
		c.SweepInterval,
		c.JobMaxAge,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
