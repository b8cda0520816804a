package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kalambet/jarvis/internal/storage"
)

// SchedulerStore lists connections eligible for automatic sync.
type SchedulerStore interface {
	ListAutoSyncConnections() ([]storage.CloudConnection, error)
}

// Scheduler periodically sweeps auto-sync connections and triggers a job for
// each whose interval has elapsed. It only triggers; the engine never
// self-schedules.
type Scheduler struct {
	store   SchedulerStore
	service *Service
	sweep   time.Duration
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler sweeping at the given interval.
// If sweep is <= 0, it defaults to one minute.
func NewScheduler(store SchedulerStore, service *Service, sweep time.Duration) *Scheduler {
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &Scheduler{store: store, service: service, sweep: sweep, logger: slog.Default()}
}

// Run sweeps until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce triggers one sync for every due connection. Conflicts with an
// already-running job are skipped silently; they mean the work is underway.
func (s *Scheduler) SweepOnce(ctx context.Context) {
	conns, err := s.store.ListAutoSyncConnections()
	if err != nil {
		s.logger.Error("listing auto-sync connections failed", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, conn := range conns {
		if !conn.LastSyncAt.IsZero() && now.Sub(conn.LastSyncAt) < conn.SyncInterval {
			continue
		}

		job, err := s.service.Trigger(ctx, conn.ID)
		switch {
		case errors.Is(err, storage.ErrSyncInProgress):
			continue
		case err != nil:
			s.logger.Error("auto-sync trigger failed", "connection_id", conn.ID, "error", err)
		default:
			s.logger.Info("auto-sync triggered", "connection_id", conn.ID, "job_id", job.ID)
		}
	}
}
