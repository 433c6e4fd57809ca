package progress

import (
	"context"
	"sync"
	"time"

	"github.com/healthspec-ai/healthspec/internal/domain"
)

// MemoryStore keeps per-job event logs in process memory. Appends take the
// write lock; reads return a copied snapshot so pollers never observe a
// partially-appended slice.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string][]domain.ProgressEvent
}

// NewMemoryStore creates an in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string][]domain.ProgressEvent),
	}
}

// Append adds an event to a job's log.
func (s *MemoryStore) Append(ctx context.Context, jobID string, event domain.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[jobID] = append(s.jobs[jobID], event)
	return nil
}

// List returns a snapshot of a job's event history in append order.
func (s *MemoryStore) List(ctx context.Context, jobID string) ([]domain.ProgressEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.jobs[jobID]
	snapshot := make([]domain.ProgressEvent, len(events))
	copy(snapshot, events)
	return snapshot, nil
}

// Latest returns the most recent event for a job, or nil when unknown.
func (s *MemoryStore) Latest(ctx context.Context, jobID string) (*domain.ProgressEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.jobs[jobID]
	if len(events) == 0 {
		return nil, nil
	}
	last := events[len(events)-1]
	return &last, nil
}

// Evict drops jobs whose last event predates the cutoff. Returns the number
// of jobs removed.
func (s *MemoryStore) Evict(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for jobID, events := range s.jobs {
		if len(events) == 0 || events[len(events)-1].Timestamp.Before(olderThan) {
			delete(s.jobs, jobID)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
