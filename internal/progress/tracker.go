// Package progress implements the per-job progress event log polled by
// clients during document processing. Events are append-only: pipeline code
// never mutates or removes them; eviction is a separate time-based
// housekeeping concern.
package progress

import (
	"context"
	"time"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

// Store persists per-job event logs. One writer per job, many readers.
type Store interface {
	Append(ctx context.Context, jobID string, event domain.ProgressEvent) error
	List(ctx context.Context, jobID string) ([]domain.ProgressEvent, error)
	Latest(ctx context.Context, jobID string) (*domain.ProgressEvent, error)
	Evict(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// Tracker is the progress service consumed by pipeline stages and handlers.
type Tracker struct {
	store  Store
	logger *observability.Logger
	ttl    time.Duration
	stop   chan struct{}
}

// Config holds tracker settings.
type Config struct {
	TTL           time.Duration // drop jobs whose last event is older than this
	EvictInterval time.Duration
}

// NewTracker creates a tracker over the given store and starts the eviction
// loop when a TTL is configured.
func NewTracker(store Store, logger *observability.Logger, cfg Config) *Tracker {
	if logger == nil {
		logger = observability.Nop()
	}

	t := &Tracker{
		store:  store,
		logger: logger,
		ttl:    cfg.TTL,
		stop:   make(chan struct{}),
	}

	if cfg.TTL > 0 {
		interval := cfg.EvictInterval
		if interval <= 0 {
			interval = 15 * time.Minute
		}
		go t.evictLoop(interval)
	}

	return t
}

// AddUpdate appends an event to a job's log. Timestamps are assigned here so
// arrival order and timestamp order agree.
func (t *Tracker) AddUpdate(ctx context.Context, jobID string, event domain.ProgressEvent) {
	event.JobID = jobID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := t.store.Append(ctx, jobID, event); err != nil {
		// Progress reporting must never fail the pipeline.
		t.logger.Warn().Err(err).Str("job_id", jobID).Str("step", event.Step).Msg("Failed to record progress event")
	}
}

// Emit implements domain.ProgressSink.
func (t *Tracker) Emit(ctx context.Context, event domain.ProgressEvent) {
	t.AddUpdate(ctx, event.JobID, event)
}

// GetUpdates returns the full ordered event history for a job.
func (t *Tracker) GetUpdates(ctx context.Context, jobID string) ([]domain.ProgressEvent, error) {
	return t.store.List(ctx, jobID)
}

// Latest returns the most recent event for a job, or nil when the job is unknown.
func (t *Tracker) Latest(ctx context.Context, jobID string) (*domain.ProgressEvent, error) {
	return t.store.Latest(ctx, jobID)
}

// Close stops the eviction loop and closes the store.
func (t *Tracker) Close() error {
	close(t.stop)
	return t.store.Close()
}

func (t *Tracker) evictLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-t.ttl)
			n, err := t.store.Evict(context.Background(), cutoff)
			if err != nil {
				t.logger.Warn().Err(err).Msg("Progress eviction failed")
				continue
			}
			if n > 0 {
				t.logger.Debug().Int("jobs", n).Msg("Evicted stale progress logs")
			}
		}
	}
}
