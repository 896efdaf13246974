// Package bootstrap provides dependency initialization for the trimming service.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/arpitdayma123/trimcore/internal/config"
	"github.com/arpitdayma123/trimcore/internal/media"
	"github.com/arpitdayma123/trimcore/internal/notify"
	"github.com/arpitdayma123/trimcore/internal/render"
	"github.com/arpitdayma123/trimcore/internal/session"
	"github.com/arpitdayma123/trimcore/internal/silence"
	"github.com/arpitdayma123/trimcore/internal/storage"
	"github.com/arpitdayma123/trimcore/internal/trim"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	SessionService *session.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := initNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	decoder := media.NewFFmpegDecoder(cfg.FFmpegPath)

	detect := silence.DefaultOptions()
	detect.MinRemovalSec = cfg.MinRemovalSec
	detect.QuietRMS = cfg.QuietRMS

	svc := session.NewService(
		session.NewMemoryRepository(),
		store,
		decoder,
		session.WithLogger(logger),
		session.WithNotifier(notifier),
		session.WithFrameExtractor(decoder),
		session.WithVideoRenderer(render.NewVideoRenderer(cfg.FFmpegPath)),
		session.WithDetectOptions(detect),
		session.WithDetectThreshold(cfg.DetectThreshold),
		session.WithWaveformColumns(cfg.WaveformColumns),
		session.WithThumbnailCount(cfg.ThumbnailCount),
		session.WithMinGap(cfg.MinGapMs),
		session.WithVoiceLimits(trim.Limits{MinSec: cfg.VoiceMinSec, MaxSec: cfg.VoiceMaxSec}),
		session.WithVideoLimits(trim.Limits{MinSec: cfg.VideoMinSec, MaxSec: cfg.VideoMaxSec}),
	)

	return &Dependencies{
		SessionService: svc,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initNotifier creates the completion notifier based on configuration.
func initNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	if !cfg.WebhookEnabled() {
		return notify.NopNotifier{}, nil
	}

	client, err := notify.NewWebhookClient(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("create webhook client: %w", err)
	}
	logger.Info("completion webhook configured",
		slog.String("url", cfg.WebhookURL),
	)
	return client, nil
}
