// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/trimcore" json:"temp_dir"`

	// Media settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Analysis settings
	WaveformColumns int     `env:"WAVEFORM_COLUMNS, default=200" json:"waveform_columns"`
	ThumbnailCount  int     `env:"THUMBNAIL_COUNT, default=10" json:"thumbnail_count"`
	DetectThreshold float64 `env:"DETECT_THRESHOLD, default=0.01" json:"detect_threshold"`
	MinRemovalSec   float64 `env:"MIN_REMOVAL_SEC, default=0.3" json:"min_removal_sec"`
	QuietRMS        float64 `env:"QUIET_RMS, default=0.005" json:"quiet_rms"`

	// Trim settings
	MinGapMs    int64   `env:"MIN_GAP_MS, default=100" json:"min_gap_ms"`
	VoiceMinSec float64 `env:"VOICE_MIN_SEC, default=8" json:"voice_min_sec"`
	VoiceMaxSec float64 `env:"VOICE_MAX_SEC, default=40" json:"voice_max_sec"`
	VideoMinSec float64 `env:"VIDEO_MIN_SEC, default=50" json:"video_min_sec"`
	VideoMaxSec float64 `env:"VIDEO_MAX_SEC, default=100" json:"video_max_sec"`

	// Optional completion webhook
	WebhookURL string `env:"WEBHOOK_URL" json:"webhook_url,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
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

// WebhookEnabled returns true if a completion webhook is configured.
func (c *Config) WebhookEnabled() bool {
	return c.WebhookURL != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
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
		"Config{Port: %d, TempDir: %s, FFmpegPath: %s, WaveformColumns: %d, ThumbnailCount: %d, S3Bucket: %s, S3Region: %s, WebhookURL: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.FFmpegPath,
		c.WaveformColumns,
		c.ThumbnailCount,
		c.S3Bucket,
		c.S3Region,
		c.WebhookURL,
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
