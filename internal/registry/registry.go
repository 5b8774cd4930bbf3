// Package registry persists the mapping between job correlation IDs and the
// playback URLs produced by completed transcode jobs.
package registry

import (
	"context"
	"errors"
	"time"
)

// Record associates a job correlation ID with the master playlist URL the
// transcode worker produced for it.
type Record struct {
	JobID       string
	PlaybackURL string
	CreatedAt   time.Time
}

var (
	// ErrConflict indicates a record already exists for the job ID.
	ErrConflict = errors.New("registry: record already exists")
	// ErrNotFound indicates no record exists for the job ID.
	ErrNotFound = errors.New("registry: record not found")
)

// Store is the persistence contract for playback link records. Create returns
// ErrConflict when the job ID is already registered; the first registration
// wins and later attempts never overwrite it.
type Store interface {
	Create(ctx context.Context, record Record) error
	Get(ctx context.Context, jobID string) (Record, error)
	Close(ctx context.Context) error
}
