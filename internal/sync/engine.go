package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/jarvis/internal/cloud"
	"github.com/kalambet/jarvis/internal/ingest"
	"github.com/kalambet/jarvis/internal/storage"
)

// imageExtensions are never content-indexed, so the engine skips them before
// they reach the per-file loop.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".heic": true, ".svg": true,
}

// Store is the persistence surface the engine needs. *storage.Store satisfies it.
type Store interface {
	GetCloudConnection(id string) (storage.CloudConnection, error)
	SetConnectionSyncStatus(id, status string) error
	RecordConnectionSyncResult(id, status, lastError string, synced, processed int, at time.Time) error
	GetSyncJob(id string) (storage.SyncJob, error)
	UpdateSyncJob(j storage.SyncJob) error
	CreateFileOperation(op storage.FileOperation) error
	FinalizeFileOperation(op storage.FileOperation) error
	FindDocumentByName(userID, originalName string) (storage.Document, error)
}

// Ingestor is the document ingestion collaborator boundary.
type Ingestor interface {
	CreateOrUpdate(ctx context.Context, f ingest.File) (string, error)
	Index(ctx context.Context, documentID string) error
}

// ConnectorFactory builds a provider connector from a connection's stored
// configuration and credentials.
type ConnectorFactory func(conn storage.CloudConnection) (cloud.Connector, error)

// Engine runs one sync job: a full lazy traversal of a connection's remote
// tree with hash-based change detection, download, folder placement, and
// ingestion of new or changed files.
type Engine struct {
	store       Store
	ingest      Ingestor
	folders     *Reconciler
	connect     ConnectorFactory
	downloadDir string
	logger      *slog.Logger
}

// NewEngine creates an Engine. downloadDir is the local root under which
// synced files are stored, namespaced per provider and user.
func NewEngine(store Store, ing Ingestor, folders *Reconciler, connect ConnectorFactory, downloadDir string) *Engine {
	return &Engine{
		store:       store,
		ingest:      ing,
		folders:     folders,
		connect:     connect,
		downloadDir: downloadDir,
		logger:      slog.Default(),
	}
}

// Run executes the job against its connection. Per-file failures are
// recorded on the file operation and counted, never aborting the run; a
// whole-traversal failure marks the job and connection failed and is
// returned so the scheduling layer can record it.
func (e *Engine) Run(ctx context.Context, connectionID, jobID string) error {
	conn, err := e.store.GetCloudConnection(connectionID)
	if err != nil {
		return fmt.Errorf("loading connection %s: %w", connectionID, err)
	}
	job, err := e.store.GetSyncJob(jobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}

	job.Status = storage.StatusInProgress
	job.StartedAt = time.Now().UTC()
	if err := e.store.UpdateSyncJob(job); err != nil {
		return fmt.Errorf("marking job in progress: %w", err)
	}
	// Surface the running state on the connection immediately for status queries.
	if err := e.store.SetConnectionSyncStatus(conn.ID, storage.StatusInProgress); err != nil {
		e.logger.Warn("updating connection status failed", "connection_id", conn.ID, "error", err)
	}

	e.logger.Info("sync started", "connection_id", conn.ID, "job_id", job.ID, "path", conn.SyncPath)

	if err := e.traverse(ctx, conn, &job); err != nil {
		now := time.Now().UTC()
		job.Status = storage.StatusFailed
		job.ErrorMessage = err.Error()
		job.CompletedAt = now
		if updErr := e.store.UpdateSyncJob(job); updErr != nil {
			e.logger.Error("recording failed job state", "job_id", job.ID, "error", updErr)
		}
		if connErr := e.store.RecordConnectionSyncResult(conn.ID, storage.StatusFailed, err.Error(),
			conn.TotalSynced, conn.TotalProcessed, now); connErr != nil {
			e.logger.Error("recording failed connection state", "connection_id", conn.ID, "error", connErr)
		}
		return fmt.Errorf("sync job %s: %w", job.ID, err)
	}

	now := time.Now().UTC()
	job.Status = storage.StatusCompleted
	job.CompletedAt = now
	if err := e.store.UpdateSyncJob(job); err != nil {
		return fmt.Errorf("recording completed job: %w", err)
	}
	if err := e.store.RecordConnectionSyncResult(conn.ID, storage.StatusCompleted, "",
		job.TotalFiles, job.NewFiles+job.UpdatedFiles, now); err != nil {
		return fmt.Errorf("recording connection result: %w", err)
	}

	e.logger.Info("sync completed",
		"job_id", job.ID,
		"total", job.TotalFiles,
		"processed", job.ProcessedFiles,
		"new", job.NewFiles,
		"updated", job.UpdatedFiles,
		"failed", job.FailedFiles,
	)
	return nil
}

// traverse streams the remote tree and processes each admitted file. Only
// traversal-level errors are returned; per-file errors are contained.
func (e *Engine) traverse(ctx context.Context, conn storage.CloudConnection, job *storage.SyncJob) error {
	connector, err := e.connect(conn)
	if err != nil {
		return fmt.Errorf("building connector: %w", err)
	}

	traversal := cloud.Traverse(connector, conn.SyncPath, cloud.Filter{
		Extensions:      conn.FileExtensions,
		ExcludePatterns: conn.ExcludePatterns,
		IncludedPaths:   conn.IncludedPaths,
	})

	for {
		rec, ok, err := traversal.Next(ctx)
		if err != nil {
			return fmt.Errorf("traversing %s: %w", conn.SyncPath, err)
		}
		if !ok {
			return nil
		}
		if imageExtensions[strings.ToLower(path.Ext(rec.Name))] {
			continue
		}

		// The traversal is lazy, so the total is a running estimate until
		// it finishes.
		job.TotalFiles++

		op := storage.FileOperation{
			ID:        uuid.New().String(),
			JobID:     job.ID,
			FilePath:  rec.Path,
			FileName:  rec.Name,
			FileSize:  rec.Size,
			FileHash:  rec.Hash,
			Operation: storage.OpCheck,
			Status:    storage.StatusInProgress,
			CreatedAt: time.Now().UTC(),
		}
		if err := e.store.CreateFileOperation(op); err != nil {
			return fmt.Errorf("creating file operation for %s: %w", rec.Path, err)
		}

		if err := e.processFile(ctx, connector, conn, job, rec, &op); err != nil {
			// A single file failure never aborts the job.
			e.logger.Warn("file sync failed", "path", rec.Path, "error", err)
			op.Status = storage.StatusFailed
			op.ErrorMessage = err.Error()
			job.FailedFiles++
		} else {
			op.Status = storage.StatusCompleted
			job.ProcessedFiles++
		}

		if err := e.store.FinalizeFileOperation(op); err != nil {
			return fmt.Errorf("finalizing file operation for %s: %w", rec.Path, err)
		}
		// Persist progress each iteration so mid-run status queries see a
		// moving processed/total ratio.
		if err := e.store.UpdateSyncJob(*job); err != nil {
			return fmt.Errorf("persisting job progress: %w", err)
		}
	}
}

// processFile decides skip vs download for one remote file and carries the
// download path through ingestion. It mutates op's resolved operation kind
// and document link, and the job's new/updated counters.
func (e *Engine) processFile(ctx context.Context, connector cloud.Connector, conn storage.CloudConnection,
	job *storage.SyncJob, rec cloud.FileRecord, op *storage.FileOperation) error {

	existing, err := e.store.FindDocumentByName(conn.UserID, rec.Name)
	exists := err == nil
	if err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("looking up document: %w", err)
	}

	if exists && rec.Hash != "" && existing.ContentHash == rec.Hash {
		op.Operation = storage.OpSkip
		return nil
	}

	op.Operation = storage.OpDownload
	localPath := filepath.Join(e.downloadDir, conn.Provider, conn.UserID, rec.Name)
	if err := connector.Download(ctx, rec.Path, localPath); err != nil {
		return fmt.Errorf("downloading: %w", err)
	}

	folderID, err := e.folders.Resolve(conn.UserID, path.Dir(rec.Path))
	if err != nil {
		return fmt.Errorf("resolving folder: %w", err)
	}

	docID, err := e.ingest.CreateOrUpdate(ctx, ingest.File{
		UserID:       conn.UserID,
		LocalPath:    localPath,
		OriginalName: rec.Name,
		FolderID:     folderID,
		ContentHash:  rec.Hash,
	})
	if err != nil {
		return fmt.Errorf("ingesting: %w", err)
	}
	op.DocumentID = docID

	if err := e.ingest.Index(ctx, docID); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	if exists {
		job.UpdatedFiles++
	} else {
		job.NewFiles++
	}
	return nil
}
