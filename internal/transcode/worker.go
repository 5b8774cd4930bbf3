package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"vodforge/internal/config"
	"vodforge/internal/objectstore"
	"vodforge/internal/observability/logging"
)

// Worker runs the full pipeline for one job: resolve source, download,
// transcode, upload, report, cleanup.
type Worker struct {
	cfg    config.Worker
	store  objectstore.Gateway
	client *http.Client
	logger *slog.Logger
}

// NewWorker assembles a worker for the given job parameters.
func NewWorker(cfg config.Worker, store objectstore.Gateway, logger *slog.Logger) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("object store gateway required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: downloadTimeout},
		logger: logging.WithComponent(logger, "worker").With("job_id", cfg.JobID),
	}, nil
}

// Run executes the pipeline stages in order. The first failing stage aborts
// the rest; scratch storage is removed on every path.
func (w *Worker) Run(ctx context.Context) (err error) {
	scratch := w.cfg.ScratchDir
	if scratch == "" {
		scratch, err = os.MkdirTemp("", "vodforge-"+w.cfg.JobID+"-")
		if err != nil {
			return fmt.Errorf("create scratch dir: %w", err)
		}
	}
	defer func() {
		if removeErr := os.RemoveAll(scratch); removeErr != nil {
			w.logger.Warn("scratch cleanup failed", "dir", scratch, "error", removeErr)
		} else {
			w.logger.Info("scratch cleaned up", "dir", scratch)
		}
	}()

	w.logger.Info("transcode job starting", "output_bucket", w.cfg.OutputBucket)

	sourceURL := w.cfg.SourceURL
	if sourceURL == "" {
		sourceURL, err = w.store.PresignDownload(ctx, w.cfg.SourceBucket, w.cfg.SourceKey, w.cfg.SourceFetchTTL)
		if err != nil {
			return fmt.Errorf("presign source fetch: %w", err)
		}
	}

	inputPath := filepath.Join(scratch, "input.mp4")
	if err := DownloadSource(ctx, w.client, sourceURL, inputPath); err != nil {
		return err
	}
	w.logger.Info("source downloaded", "path", inputPath)

	outputDir := filepath.Join(scratch, "output")
	plan, err := BuildPlan(inputPath, outputDir, DefaultLadder(), PlanOptions{
		Preset:         w.cfg.Preset,
		CRF:            w.cfg.CRF,
		SegmentSeconds: w.cfg.SegmentSeconds,
	})
	if err != nil {
		return fmt.Errorf("build transcode plan: %w", err)
	}

	runner := Runner{FFmpegPath: w.cfg.FFmpegPath, Logger: w.logger}
	if err := runner.Run(ctx, plan); err != nil {
		return err
	}

	result, err := UploadRenditionSet(ctx, w.store, plan.OutputDir, w.cfg.OutputBucket, w.cfg.JobID, w.cfg.UploadConcurrency, w.logger)
	if err != nil {
		return err
	}

	playbackURL := fmt.Sprintf("%s/%s/%s", w.cfg.PlaybackBaseURL, w.cfg.JobID, plan.MasterName)
	w.logger.Info("rendition set uploaded",
		"uploaded", result.Uploaded,
		"failed", result.Failed,
		"playback_url", playbackURL,
	)

	if w.cfg.BackendEndpoint != "" {
		if err := ReportPlaybackLink(ctx, w.client, w.cfg.BackendEndpoint, w.cfg.JobID, playbackURL); err != nil {
			return err
		}
		w.logger.Info("playback link reported", "endpoint", w.cfg.BackendEndpoint)
	}

	w.logger.Info("transcode job complete")
	return nil
}
