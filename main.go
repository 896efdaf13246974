// Package main provides the entry point for the trimcore API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arpitdayma123/trimcore/internal/config"
	"github.com/arpitdayma123/trimcore/internal/media"
	"github.com/arpitdayma123/trimcore/internal/notify"
	"github.com/arpitdayma123/trimcore/internal/render"
	"github.com/arpitdayma123/trimcore/internal/server"
	"github.com/arpitdayma123/trimcore/internal/session"
	"github.com/arpitdayma123/trimcore/internal/silence"
	"github.com/arpitdayma123/trimcore/internal/storage"
	"github.com/arpitdayma123/trimcore/internal/trim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting trimcore API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.String("ffmpeg_path", cfg.FFmpegPath),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Bool("webhook_enabled", cfg.WebhookEnabled()),
	)

	// Initialize storage
	var store storage.Storage
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return fmt.Errorf("create S3 storage: %w", err)
		}
		store = s3Store
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
	} else {
		localStore, err := storage.NewLocalStorage(cfg.TempDir)
		if err != nil {
			return fmt.Errorf("create local storage: %w", err)
		}
		store = localStore
		logger.Info("local storage configured",
			slog.String("temp_dir", cfg.TempDir),
		)
	}

	// Initialize completion notifier
	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.WebhookEnabled() {
		client, err := notify.NewWebhookClient(cfg.WebhookURL)
		if err != nil {
			return fmt.Errorf("create webhook client: %w", err)
		}
		notifier = client
		logger.Info("completion webhook configured",
			slog.String("url", cfg.WebhookURL),
		)
	}

	// Initialize ffmpeg-backed decoder; it also serves as frame extractor
	decoder := media.NewFFmpegDecoder(cfg.FFmpegPath)

	detect := silence.DefaultOptions()
	detect.MinRemovalSec = cfg.MinRemovalSec
	detect.QuietRMS = cfg.QuietRMS

	// Initialize session service
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

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(svc, logger)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Allow for long renders
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
