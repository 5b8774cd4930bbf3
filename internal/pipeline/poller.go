package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vodforge/internal/dispatch"
	"vodforge/internal/objectstore"
	"vodforge/internal/observability/logging"
	"vodforge/internal/observability/metrics"
	"vodforge/internal/queue"
)

// PollerConfig wires the poller's collaborators and tuning knobs.
type PollerConfig struct {
	Queue           queue.Gateway
	Store           objectstore.Gateway
	Dispatcher      dispatch.Dispatcher
	Logger          *slog.Logger
	Metrics         *metrics.Recorder
	UploadBucket    string
	OutputBucket    string
	PlaybackBaseURL string
	BackendEndpoint string
	DownloadTTL     time.Duration
	BatchSize       int
	// IdleSleep throttles the loop after a receive error so a dead queue
	// endpoint does not spin the CPU.
	IdleSleep time.Duration
}

// Poller runs the unbounded receive/dispatch/delete loop. Per-message
// failures are logged and never stop the loop; only context cancellation
// ends it.
type Poller struct {
	cfg    PollerConfig
	logger *slog.Logger
}

// NewPoller validates the wiring and returns a ready poller.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Queue == nil {
		return nil, errors.New("pipeline: queue gateway required")
	}
	if cfg.Store == nil {
		return nil, errors.New("pipeline: object store gateway required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("pipeline: dispatcher required")
	}
	if cfg.UploadBucket == "" || cfg.OutputBucket == "" {
		return nil, errors.New("pipeline: upload and output buckets required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.DownloadTTL <= 0 {
		cfg.DownloadTTL = time.Hour
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{cfg: cfg, logger: logging.WithComponent(logger, "poller")}, nil
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("queue polling started",
		"upload_bucket", p.cfg.UploadBucket,
		"output_bucket", p.cfg.OutputBucket,
		"batch_size", p.cfg.BatchSize,
	)

	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("queue polling stopped")
			return err
		}

		messages, err := p.cfg.Queue.Receive(ctx, p.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("queue polling stopped")
				return ctx.Err()
			}
			p.observe("receive_error")
			p.logger.Error("receive messages failed", "error", err)
			p.sleep(ctx)
			continue
		}

		for _, msg := range messages {
			p.handleMessage(ctx, msg)
		}
	}
}

// handleMessage processes one delivery. Malformed bodies are skipped without
// deletion; once dispatch has been attempted the message is deleted whether
// or not the launch succeeded.
func (p *Poller) handleMessage(ctx context.Context, msg queue.Message) {
	p.observe("received")

	key, err := ParseUploadEvent(msg.Body)
	if err != nil {
		p.observe("malformed")
		p.logger.Warn("skipping malformed upload event", "error", err)
		return
	}

	jobID, err := DeriveJobID(key)
	if err != nil {
		p.observe("malformed")
		p.logger.Warn("skipping upload event with unusable key", "key", key, "error", err)
		return
	}

	ctx = logging.ContextWithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, p.logger).With("key", key)

	downloadURL, err := p.cfg.Store.PresignDownload(ctx, p.cfg.UploadBucket, key, p.cfg.DownloadTTL)
	if err != nil {
		p.observe("presign_error")
		logger.Error("presign source download failed", "error", err)
		return
	}

	job := dispatch.Job{
		JobID:           jobID,
		SourceURL:       downloadURL,
		SourceKey:       key,
		SourceBucket:    p.cfg.UploadBucket,
		OutputBucket:    p.cfg.OutputBucket,
		PlaybackBaseURL: p.cfg.PlaybackBaseURL,
		BackendEndpoint: p.cfg.BackendEndpoint,
	}

	// a job counts as started once dispatch is attempted; the link-create
	// handler marks it completed when the worker reports back
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.JobStarted()
	}
	if err := p.cfg.Dispatcher.Start(ctx, job); err != nil {
		p.observe("dispatch_failed")
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.JobFailed()
		}
		logger.Error("dispatch failed", "kind", string(dispatch.KindOf(err)), "error", err)
	} else {
		p.observe("dispatched")
		logger.Info("transcode job dispatched")
	}

	// fire-and-forget: the message is acknowledged once dispatch was
	// attempted, not once the worker finishes
	if err := p.cfg.Queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		p.logger.Warn("delete message failed", "error", err)
		return
	}
	p.observe("deleted")
}

func (p *Poller) observe(event string) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObservePipelineEvent(event)
	}
}

func (p *Poller) sleep(ctx context.Context) {
	timer := time.NewTimer(p.cfg.IdleSleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
