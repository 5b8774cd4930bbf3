package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"vodforge/internal/config"
)

// ProcessDispatcher runs the transcode worker as a local child process. It
// mirrors the Fargate launch contract for development machines without AWS
// access: the job parameters travel through the same environment variables.
type ProcessDispatcher struct {
	binary string
	region string
	logger *slog.Logger
}

// NewProcessDispatcher builds a dispatcher that spawns the given worker
// binary.
func NewProcessDispatcher(binary, region string, logger *slog.Logger) (*ProcessDispatcher, error) {
	if strings.TrimSpace(binary) == "" {
		return nil, fmt.Errorf("worker binary required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDispatcher{binary: binary, region: region, logger: logger}, nil
}

func (d *ProcessDispatcher) Start(_ context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	cmd := exec.Command(d.binary)
	cmd.Env = append(os.Environ(),
		config.EnvJobID+"="+job.JobID,
		config.EnvSourceURL+"="+job.SourceURL,
		config.EnvSourceKey+"="+job.SourceKey,
		config.EnvSourceBucket+"="+job.SourceBucket,
		config.EnvOutputBucket+"="+job.OutputBucket,
		config.EnvPlaybackBaseURL+"="+job.PlaybackBaseURL,
		config.EnvBackendEndpoint+"="+job.BackendEndpoint,
		config.EnvRegion+"="+d.region,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return &Error{Kind: KindValidation, Op: "start worker", Err: err}
	}

	logger := d.logger.With("job_id", job.JobID, "pid", cmd.Process.Pid)
	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Error("worker process exited with failure", "error", err)
			return
		}
		logger.Info("worker process completed")
	}()
	return nil
}
