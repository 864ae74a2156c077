// Package bootstrap provides dependency initialization for the flashcut API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/flashcut/flashcut-api/internal/audio"
	"github.com/flashcut/flashcut-api/internal/config"
	"github.com/flashcut/flashcut-api/internal/job"
	"github.com/flashcut/flashcut-api/internal/media"
	"github.com/flashcut/flashcut-api/internal/onset"
	"github.com/flashcut/flashcut-api/internal/onsetapi"
	"github.com/flashcut/flashcut-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Store          storage.Store
	Renderer       media.Renderer
	AnalyzeService *job.AnalyzeService
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize onset detection
	detector, err := initDetector(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize audio decoding and rendering
	decoder := audio.NewFFmpegDecoder(cfg.FFmpegPath)
	renderer := media.NewFFmpegRenderer(cfg.FFmpegPath, cfg.FFprobePath)

	svc := job.NewAnalyzeService(store, decoder, detector, renderer, logger, cfg.MaxConcurrentJobs)

	return &Dependencies{
		Store:          store,
		Renderer:       renderer,
		AnalyzeService: svc,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.JobsDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.JobsDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("jobs_dir", localStore.Root()),
	)
	return localStore, nil
}

// initDetector selects the onset detector: the remote analysis service
// when configured, the native spectral flux detector otherwise.
func initDetector(cfg *config.Config, logger *slog.Logger) (onset.Detector, error) {
	if cfg.RemoteAnalyzerEnabled() {
		client, err := onsetapi.NewClient(cfg.OnsetAPIURL, onsetapi.WithToken(cfg.OnsetAPIToken))
		if err != nil {
			return nil, fmt.Errorf("create onset API client: %w", err)
		}
		logger.Info("remote onset analysis configured",
			slog.String("url", cfg.OnsetAPIURL),
		)
		return onset.NewRemoteDetector(client), nil
	}
	return onset.NewFluxDetector(), nil
}
