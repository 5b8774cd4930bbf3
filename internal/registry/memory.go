package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps playback link records in process memory. It backs local
// development and tests where a Postgres instance is not available.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	clock   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, record Record) error {
	jobID := strings.TrimSpace(record.JobID)
	if jobID == "" {
		return fmt.Errorf("registry: job id required")
	}
	if strings.TrimSpace(record.PlaybackURL) == "" {
		return fmt.Errorf("registry: playback url required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[jobID]; exists {
		return ErrConflict
	}
	record.JobID = jobID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.clock()
	}
	s.records[jobID] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[strings.TrimSpace(jobID)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}
