// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// defaultSecret is the insecure out-of-the-box session secret.
const defaultSecret = "dev-secret"

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is out of range.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidMaxUpload is returned when MAX_UPLOAD_MB is not positive.
	ErrInvalidMaxUpload = errors.New("config: MAX_UPLOAD_MB must be positive")
	// ErrInvalidMaxConcurrent is returned when MAX_CONCURRENT_JOBS is not positive.
	ErrInvalidMaxConcurrent = errors.New("config: MAX_CONCURRENT_JOBS must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`
	// SessionSecret keeps the FLASK_SECRET name for compatibility with
	// existing deployments.
	SessionSecret string `env:"FLASK_SECRET, default=dev-secret" json:"-"` // Masked in JSON

	// Storage settings
	JobsDir string `env:"JOBS_DIR, default=jobs" json:"jobs_dir"`

	// Processing settings
	MaxUploadMB       int `env:"MAX_UPLOAD_MB, default=500" json:"max_upload_mb"`
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS, default=1" json:"max_concurrent_jobs"`

	// Renderer settings (binary path overrides)
	FFmpegPath  string `env:"FFMPEG" json:"ffmpeg,omitempty"`
	FFprobePath string `env:"FFPROBE" json:"ffprobe,omitempty"`

	// Optional remote onset analysis service
	OnsetAPIURL   string `env:"ONSET_API_URL" json:"onset_api_url,omitempty"`
	OnsetAPIToken string `env:"ONSET_API_TOKEN" json:"-"` // Masked in JSON

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RemoteAnalyzerEnabled returns true when an external onset analysis
// service is configured.
func (c *Config) RemoteAnalyzerEnabled() bool {
	return c.OnsetAPIURL != ""
}

// MaxUploadBytes returns the request body cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// IsDefaultSecret reports whether the session secret was left at its
// insecure default.
func (c *Config) IsDefaultSecret() bool {
	return c.SessionSecret == defaultSecret
}

// Load reads configuration from a .env file (if present) and the
// environment using go-envconfig. Real environment variables win over
// .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.MaxUploadMB < 1 {
		return ErrInvalidMaxUpload
	}
	if c.MaxConcurrentJobs < 1 {
		return ErrInvalidMaxConcurrent
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

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, JobsDir: %s, MaxUploadMB: %d, MaxConcurrentJobs: %d, FFmpegPath: %s, FFprobePath: %s, OnsetAPIURL: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.JobsDir,
		c.MaxUploadMB,
		c.MaxConcurrentJobs,
		c.FFmpegPath,
		c.FFprobePath,
		c.OnsetAPIURL,
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
