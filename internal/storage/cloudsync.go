package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

func marshalList(items []string) string {
	if items == nil {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

// --- Cloud connections ---

func (s *Store) CreateCloudConnection(c CloudConnection) error {
	_, err := s.db.Exec(`
		INSERT INTO cloud_connections (id, user_id, provider, name, credentials, sync_path,
			included_paths, exclude_patterns, file_extensions, sync_enabled, auto_sync,
			sync_interval_minutes, last_sync_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Provider, c.Name, c.Credentials, c.SyncPath,
		marshalList(c.IncludedPaths), marshalList(c.ExcludePatterns), marshalList(c.FileExtensions),
		c.SyncEnabled, c.AutoSync, int(c.SyncInterval/time.Minute), StatusPending, formatTime(c.CreatedAt),
	)
	return err
}

const connectionColumns = `id, user_id, provider, name, credentials, sync_path,
	included_paths, exclude_patterns, file_extensions, sync_enabled, auto_sync,
	sync_interval_minutes, last_sync_at, last_sync_status, last_error,
	total_synced, total_processed, created_at`

func scanConnection(row interface{ Scan(...any) error }) (CloudConnection, error) {
	var c CloudConnection
	var included, excluded, extensions string
	var intervalMinutes int
	var lastSyncAt sql.NullString
	var createdAt string
	err := row.Scan(&c.ID, &c.UserID, &c.Provider, &c.Name, &c.Credentials, &c.SyncPath,
		&included, &excluded, &extensions, &c.SyncEnabled, &c.AutoSync,
		&intervalMinutes, &lastSyncAt, &c.LastSyncStatus, &c.LastError,
		&c.TotalSynced, &c.TotalProcessed, &createdAt)
	if err == sql.ErrNoRows {
		return CloudConnection{}, ErrNotFound
	}
	if err != nil {
		return CloudConnection{}, err
	}
	c.IncludedPaths = unmarshalList(included)
	c.ExcludePatterns = unmarshalList(excluded)
	c.FileExtensions = unmarshalList(extensions)
	c.SyncInterval = time.Duration(intervalMinutes) * time.Minute
	if c.LastSyncAt, err = parseTime(lastSyncAt.String); err != nil {
		return CloudConnection{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return CloudConnection{}, err
	}
	return c, nil
}

func (s *Store) GetCloudConnection(id string) (CloudConnection, error) {
	return scanConnection(s.db.QueryRow(
		`SELECT ` + connectionColumns + ` FROM cloud_connections WHERE id = ?`, id))
}

func (s *Store) ListCloudConnections(userID string) ([]CloudConnection, error) {
	rows, err := s.db.Query(
		`SELECT `+connectionColumns+` FROM cloud_connections
		WHERE user_id = ? ORDER BY created_at ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConnections(rows)
}

// ListAutoSyncConnections returns connections eligible for the auto-sync sweep:
// sync enabled, auto-sync on.
func (s *Store) ListAutoSyncConnections() ([]CloudConnection, error) {
	rows, err := s.db.Query(
		`SELECT ` + connectionColumns + ` FROM cloud_connections
		WHERE sync_enabled = 1 AND auto_sync = 1`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConnections(rows)
}

func collectConnections(rows *sql.Rows) ([]CloudConnection, error) {
	var results []CloudConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// UpdateCloudConnectionSettings persists mutable configuration fields.
func (s *Store) UpdateCloudConnectionSettings(c CloudConnection) error {
	res, err := s.db.Exec(`
		UPDATE cloud_connections
		SET name = ?, sync_path = ?, included_paths = ?, exclude_patterns = ?,
			file_extensions = ?, sync_enabled = ?, auto_sync = ?, sync_interval_minutes = ?
		WHERE id = ?`,
		c.Name, c.SyncPath, marshalList(c.IncludedPaths), marshalList(c.ExcludePatterns),
		marshalList(c.FileExtensions), c.SyncEnabled, c.AutoSync, int(c.SyncInterval/time.Minute),
		c.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetConnectionSyncStatus updates only the last-sync status, for immediate UI
// visibility when a job starts.
func (s *Store) SetConnectionSyncStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE cloud_connections SET last_sync_status = ? WHERE id = ?`, status, id)
	return err
}

// RecordConnectionSyncResult persists the terminal outcome of a sync job onto
// the owning connection.
func (s *Store) RecordConnectionSyncResult(id, status, lastError string, synced, processed int, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE cloud_connections
		SET last_sync_at = ?, last_sync_status = ?, last_error = ?, total_synced = ?, total_processed = ?
		WHERE id = ?`,
		formatTime(at), status, lastError, synced, processed, id,
	)
	return err
}

// --- Sync jobs ---

func (s *Store) CreateSyncJob(j SyncJob) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_jobs (id, connection_id, status, created_at)
		VALUES (?, ?, ?, ?)`,
		j.ID, j.ConnectionID, StatusPending, formatTime(j.CreatedAt),
	)
	return err
}

const jobColumns = `id, connection_id, status, total_files, processed_files, failed_files,
	new_files, updated_files, started_at, completed_at, error_message, created_at`

func scanJob(row interface{ Scan(...any) error }) (SyncJob, error) {
	var j SyncJob
	var startedAt, completedAt sql.NullString
	var createdAt string
	err := row.Scan(&j.ID, &j.ConnectionID, &j.Status, &j.TotalFiles, &j.ProcessedFiles,
		&j.FailedFiles, &j.NewFiles, &j.UpdatedFiles, &startedAt, &completedAt,
		&j.ErrorMessage, &createdAt)
	if err == sql.ErrNoRows {
		return SyncJob{}, ErrNotFound
	}
	if err != nil {
		return SyncJob{}, err
	}
	if j.StartedAt, err = parseTime(startedAt.String); err != nil {
		return SyncJob{}, err
	}
	if j.CompletedAt, err = parseTime(completedAt.String); err != nil {
		return SyncJob{}, err
	}
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return SyncJob{}, err
	}
	return j, nil
}

func (s *Store) GetSyncJob(id string) (SyncJob, error) {
	return scanJob(s.db.QueryRow(`SELECT ` + jobColumns + ` FROM sync_jobs WHERE id = ?`, id))
}

// LatestSyncJob returns the most recently created job for a connection.
func (s *Store) LatestSyncJob(connectionID string) (SyncJob, error) {
	return scanJob(s.db.QueryRow(
		`SELECT `+jobColumns+` FROM sync_jobs
		WHERE connection_id = ? ORDER BY created_at DESC LIMIT 1`, connectionID))
}

func (s *Store) ListSyncJobs(connectionID string, limit int) ([]SyncJob, error) {
	rows, err := s.db.Query(
		`SELECT `+jobColumns+` FROM sync_jobs
		WHERE connection_id = ? ORDER BY created_at DESC LIMIT ?`, connectionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SyncJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, j)
	}
	return results, rows.Err()
}

// HasActiveSyncJob reports whether any pending or in-progress job exists for
// the connection. The trigger path uses this as a best-effort guard; it is a
// pre-check, not a lock.
func (s *Store) HasActiveSyncJob(connectionID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sync_jobs
		WHERE connection_id = ? AND status IN (?, ?)`,
		connectionID, StatusPending, StatusInProgress,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting active jobs: %w", err)
	}
	return count > 0, nil
}

// UpdateSyncJob persists the job's mutable fields: status, counters,
// timestamps, and error detail. Called repeatedly during a run so status
// queries see moving progress.
func (s *Store) UpdateSyncJob(j SyncJob) error {
	res, err := s.db.Exec(`
		UPDATE sync_jobs
		SET status = ?, total_files = ?, processed_files = ?, failed_files = ?,
			new_files = ?, updated_files = ?, started_at = ?, completed_at = ?, error_message = ?
		WHERE id = ?`,
		j.Status, j.TotalFiles, j.ProcessedFiles, j.FailedFiles,
		j.NewFiles, j.UpdatedFiles, formatNullTime(j.StartedAt), formatNullTime(j.CompletedAt),
		j.ErrorMessage, j.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- File operations ---

func (s *Store) CreateFileOperation(op FileOperation) error {
	_, err := s.db.Exec(`
		INSERT INTO file_operations (id, job_id, document_id, file_path, file_name,
			file_size, file_hash, operation, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.JobID, nullStr(op.DocumentID), op.FilePath, op.FileName,
		op.FileSize, op.FileHash, op.Operation, op.Status, op.ErrorMessage,
		formatTime(op.CreatedAt), formatTime(op.CreatedAt),
	)
	return err
}

// FinalizeFileOperation records the operation's resolved kind, terminal
// status, resulting document (if any), and error detail.
func (s *Store) FinalizeFileOperation(op FileOperation) error {
	res, err := s.db.Exec(`
		UPDATE file_operations
		SET document_id = ?, file_hash = ?, operation = ?, status = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		nullStr(op.DocumentID), op.FileHash, op.Operation, op.Status, op.ErrorMessage,
		formatTime(time.Now()), op.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFileOperations returns a job's file operations in creation order, which
// matches the traversal's depth-first yield order.
func (s *Store) ListFileOperations(jobID string) ([]FileOperation, error) {
	rows, err := s.db.Query(`
		SELECT id, job_id, IFNULL(document_id, ''), file_path, file_name, file_size,
			file_hash, operation, status, error_message, created_at, updated_at
		FROM file_operations WHERE job_id = ? ORDER BY created_at ASC, rowid ASC`, jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FileOperation
	for rows.Next() {
		var op FileOperation
		var createdAt, updatedAt string
		if err := rows.Scan(&op.ID, &op.JobID, &op.DocumentID, &op.FilePath, &op.FileName,
			&op.FileSize, &op.FileHash, &op.Operation, &op.Status, &op.ErrorMessage,
			&createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if op.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if op.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		results = append(results, op)
	}
	return results, rows.Err()
}
