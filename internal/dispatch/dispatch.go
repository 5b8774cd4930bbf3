// Package dispatch launches isolated transcode workers for validated upload
// events. Each job runs in its own compute unit with the job parameters
// injected through the environment.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Job carries everything a transcode worker needs to process one upload.
type Job struct {
	JobID           string
	SourceURL       string
	SourceKey       string
	SourceBucket    string
	OutputBucket    string
	PlaybackBaseURL string
	BackendEndpoint string
}

// Validate rejects jobs that cannot identify their source object or output
// destination. Dispatchers call this before touching the compute backend.
func (j Job) Validate() error {
	if strings.TrimSpace(j.JobID) == "" {
		return &Error{Kind: KindValidation, Op: "validate", Err: errors.New("job id required")}
	}
	if strings.TrimSpace(j.SourceURL) == "" && strings.TrimSpace(j.SourceKey) == "" {
		return &Error{Kind: KindValidation, Op: "validate", Err: errors.New("source url or source key required")}
	}
	if strings.TrimSpace(j.OutputBucket) == "" {
		return &Error{Kind: KindValidation, Op: "validate", Err: errors.New("output bucket required")}
	}
	return nil
}

// Dispatcher starts a transcode worker for the given job. Start returns once
// the launch request is accepted; it does not wait for the job to finish.
type Dispatcher interface {
	Start(ctx context.Context, job Job) error
}

// Kind classifies dispatch failures so the poller can log them distinctly.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNetwork       Kind = "network"
)

// Error describes a failed dispatch attempt.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the failure class of err, or an empty Kind when err is not a
// dispatch error.
func KindOf(err error) Kind {
	var dispatchErr *Error
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Kind
	}
	return ""
}
