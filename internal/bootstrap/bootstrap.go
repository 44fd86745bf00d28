// Package bootstrap provides dependency initialization for the ad generation
// API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/pitchkit/adgen-api/internal/config"
	"github.com/pitchkit/adgen-api/internal/genmedia"
	"github.com/pitchkit/adgen-api/internal/job"
	"github.com/pitchkit/adgen-api/internal/media"
	"github.com/pitchkit/adgen-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	AdService *job.Service
	Store     job.Store
	Sweeper   *job.Sweeper
}

// NewDependencies creates and initializes all dependencies for the
// application. The Sweeper field is nil unless sweeping is enabled by
// configuration.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	artifacts, err := storage.NewLocalStore(cfg.TempDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create artifact store: %w", err)
	}

	client, err := genmedia.NewClient(cfg.VideoModel, cfg.MusicModel,
		genmedia.WithAPIKey(cfg.GeminiAPIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create genmedia client: %w", err)
	}

	merger := media.NewFFmpegMerger("", artifacts.TempDir())
	store := job.NewMemoryStore()

	opts := []job.Option{
		job.WithAdDuration(cfg.AdDurationSec),
	}

	if cfg.S3Enabled() {
		publisher, err := storage.NewS3Publisher(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 publisher: %w", err)
		}
		opts = append(opts, job.WithPublisher(publisher))
		logger.Info("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
	}

	svc := job.NewService(store, client, merger, artifacts, logger, opts...)

	deps := &Dependencies{
		AdService: svc,
		Store:     store,
	}

	if cfg.SweepEnabled() {
		deps.Sweeper = job.NewSweeper(svc, store, cfg.SweepInterval, cfg.JobMaxAge, logger)
	}

	return deps, nil
}
