package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/jarvis/internal/storage"
)

// ErrSyncDisabled is returned when sync is triggered for a connection whose
// sync flag is off.
var ErrSyncDisabled = errors.New("sync is disabled for this connection")

// TriggerStore is the persistence surface the trigger service needs.
type TriggerStore interface {
	GetCloudConnection(id string) (storage.CloudConnection, error)
	HasActiveSyncJob(connectionID string) (bool, error)
	CreateSyncJob(j storage.SyncJob) error
	LatestSyncJob(connectionID string) (storage.SyncJob, error)
	ListSyncJobs(connectionID string, limit int) ([]storage.SyncJob, error)
}

// Runner executes a sync job to completion. *Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, connectionID, jobID string) error
}

// Service is the trigger surface for sync: start a job for a connection and
// query its status.
type Service struct {
	store  TriggerStore
	engine Runner
	logger *slog.Logger
}

// NewService creates a Service over the store and engine.
func NewService(store TriggerStore, engine Runner) *Service {
	return &Service{store: store, engine: engine, logger: slog.Default()}
}

// Trigger creates a job for the connection and starts it in the background.
//
// The one-in-flight-job-per-connection invariant is enforced here with a
// pre-check query, not a lock: a narrow race between concurrent triggers
// could still create two jobs. Conflicts are rejected synchronously with
// storage.ErrSyncInProgress, never queued.
func (s *Service) Trigger(ctx context.Context, connectionID string) (storage.SyncJob, error) {
	conn, err := s.store.GetCloudConnection(connectionID)
	if err != nil {
		return storage.SyncJob{}, err
	}
	if !conn.SyncEnabled {
		return storage.SyncJob{}, ErrSyncDisabled
	}

	active, err := s.store.HasActiveSyncJob(connectionID)
	if err != nil {
		return storage.SyncJob{}, fmt.Errorf("checking active jobs: %w", err)
	}
	if active {
		return storage.SyncJob{}, storage.ErrSyncInProgress
	}

	job := storage.SyncJob{
		ID:           uuid.New().String(),
		ConnectionID: connectionID,
		Status:       storage.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateSyncJob(job); err != nil {
		return storage.SyncJob{}, fmt.Errorf("creating sync job: %w", err)
	}

	// The job outlives the triggering request; detach from its cancellation.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.engine.Run(runCtx, connectionID, job.ID); err != nil {
			s.logger.Error("sync job failed", "connection_id", connectionID, "job_id", job.ID, "error", err)
		}
	}()

	return job, nil
}

// Progress is the moving completion ratio of an in-progress job.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
	Failed  int `json:"failed"`
	New     int `json:"new"`
	Updated int `json:"updated"`
}

// Status is the answer to a connection status query.
type Status struct {
	Connection storage.CloudConnection
	CurrentJob *storage.SyncJob
	Progress   *Progress
}

// Status returns the connection, its current or latest job, and a computed
// percent-complete when a job is running.
func (s *Service) Status(connectionID string) (Status, error) {
	conn, err := s.store.GetCloudConnection(connectionID)
	if err != nil {
		return Status{}, err
	}

	st := Status{Connection: conn}

	job, err := s.store.LatestSyncJob(connectionID)
	if err == storage.ErrNotFound {
		return st, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("loading latest job: %w", err)
	}
	st.CurrentJob = &job

	if job.Status == storage.StatusInProgress && job.TotalFiles > 0 {
		// Failed files were still visited, so they count toward the ratio.
		visited := job.ProcessedFiles + job.FailedFiles
		st.Progress = &Progress{
			Current: visited,
			Total:   job.TotalFiles,
			Percent: visited * 100 / job.TotalFiles,
			Failed:  job.FailedFiles,
			New:     job.NewFiles,
			Updated: job.UpdatedFiles,
		}
	}
	return st, nil
}

// Jobs returns the connection's job history, newest first.
func (s *Service) Jobs(connectionID string, limit int) ([]storage.SyncJob, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListSyncJobs(connectionID, limit)
}
