package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/jarvis/internal/storage"
	syncpkg "github.com/kalambet/jarvis/internal/sync"
)

// ConnectionRequest creates or updates a cloud storage connection.
type ConnectionRequest struct {
	TelegramID      int64    `json:"telegram_id"`
	Provider        string   `json:"provider"`
	Name            string   `json:"name"`
	Credentials     string   `json:"credentials"`
	SyncPath        string   `json:"sync_path"`
	IncludedPaths   []string `json:"included_paths"`
	ExcludePatterns []string `json:"exclude_patterns"`
	FileExtensions  []string `json:"file_extensions"`
	SyncEnabled     *bool    `json:"sync_enabled"`
	AutoSync        *bool    `json:"auto_sync"`
	SyncIntervalSec int      `json:"sync_interval_seconds"`
}

// ConnectionView is the API shape of a connection. Credentials never leave
// the server.
type ConnectionView struct {
	ID              string   `json:"id"`
	UserID          string   `json:"user_id"`
	Provider        string   `json:"provider"`
	Name            string   `json:"name"`
	SyncPath        string   `json:"sync_path"`
	IncludedPaths   []string `json:"included_paths"`
	ExcludePatterns []string `json:"exclude_patterns"`
	FileExtensions  []string `json:"file_extensions"`
	SyncEnabled     bool     `json:"sync_enabled"`
	AutoSync        bool     `json:"auto_sync"`
	SyncIntervalSec int      `json:"sync_interval_seconds"`
	LastSyncAt      string   `json:"last_sync_at,omitempty"`
	LastSyncStatus  string   `json:"last_sync_status,omitempty"`
	LastError       string   `json:"last_error,omitempty"`
	TotalSynced     int      `json:"total_synced"`
	TotalProcessed  int      `json:"total_processed"`
	CreatedAt       string   `json:"created_at"`
}

func connectionView(c storage.CloudConnection) ConnectionView {
	v := ConnectionView{
		ID:              c.ID,
		UserID:          c.UserID,
		Provider:        c.Provider,
		Name:            c.Name,
		SyncPath:        c.SyncPath,
		IncludedPaths:   c.IncludedPaths,
		ExcludePatterns: c.ExcludePatterns,
		FileExtensions:  c.FileExtensions,
		SyncEnabled:     c.SyncEnabled,
		AutoSync:        c.AutoSync,
		SyncIntervalSec: int(c.SyncInterval / time.Second),
		LastSyncStatus:  c.LastSyncStatus,
		LastError:       c.LastError,
		TotalSynced:     c.TotalSynced,
		TotalProcessed:  c.TotalProcessed,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
	if !c.LastSyncAt.IsZero() {
		v.LastSyncAt = c.LastSyncAt.Format(time.RFC3339)
	}
	return v
}

// JobView is the API shape of a sync job.
type JobView struct {
	ID             string `json:"id"`
	ConnectionID   string `json:"connection_id"`
	Status         string `json:"status"`
	TotalFiles     int    `json:"total_files"`
	ProcessedFiles int    `json:"processed_files"`
	FailedFiles    int    `json:"failed_files"`
	NewFiles       int    `json:"new_files"`
	UpdatedFiles   int    `json:"updated_files"`
	StartedAt      string `json:"started_at,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func jobView(j storage.SyncJob) JobView {
	v := JobView{
		ID:             j.ID,
		ConnectionID:   j.ConnectionID,
		Status:         j.Status,
		TotalFiles:     j.TotalFiles,
		ProcessedFiles: j.ProcessedFiles,
		FailedFiles:    j.FailedFiles,
		NewFiles:       j.NewFiles,
		UpdatedFiles:   j.UpdatedFiles,
		ErrorMessage:   j.ErrorMessage,
		CreatedAt:      j.CreatedAt.Format(time.RFC3339),
	}
	if !j.StartedAt.IsZero() {
		v.StartedAt = j.StartedAt.Format(time.RFC3339)
	}
	if !j.CompletedAt.IsZero() {
		v.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}
	return v
}

// SyncStatusView pairs a redacted connection with its current job and
// progress.
type SyncStatusView struct {
	Connection ConnectionView    `json:"connection"`
	CurrentJob *JobView          `json:"current_job,omitempty"`
	Progress   *syncpkg.Progress `json:"progress,omitempty"`
}

func syncStatusView(s syncpkg.Status) SyncStatusView {
	v := SyncStatusView{
		Connection: connectionView(s.Connection),
		Progress:   s.Progress,
	}
	if s.CurrentJob != nil {
		jv := jobView(*s.CurrentJob)
		v.CurrentJob = &jv
	}
	return v
}

func handleCreateConnection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ConnectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.TelegramID == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "telegram_id is required")
			return
		}
		if req.Provider != storage.ProviderYandexDisk && req.Provider != storage.ProviderICloud {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "provider must be %q or %q", storage.ProviderYandexDisk, storage.ProviderICloud)
			return
		}
		if req.Credentials == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "credentials is required")
			return
		}

		user, err := deps.Store.GetOrCreateUser(req.TelegramID, "", "")
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "resolving user: %v", err)
			return
		}

		conn := storage.CloudConnection{
			ID:              uuid.New().String(),
			UserID:          user.ID,
			Provider:        req.Provider,
			Name:            req.Name,
			Credentials:     req.Credentials,
			SyncPath:        req.SyncPath,
			IncludedPaths:   req.IncludedPaths,
			ExcludePatterns: req.ExcludePatterns,
			FileExtensions:  req.FileExtensions,
			SyncEnabled:     true,
			SyncInterval:    time.Duration(req.SyncIntervalSec) * time.Second,
			CreatedAt:       time.Now().UTC(),
		}
		if conn.Name == "" {
			conn.Name = conn.Provider
		}
		if req.SyncEnabled != nil {
			conn.SyncEnabled = *req.SyncEnabled
		}
		if req.AutoSync != nil {
			conn.AutoSync = *req.AutoSync
		}
		if conn.AutoSync && conn.SyncInterval <= 0 {
			conn.SyncInterval = time.Hour
		}

		if err := deps.Store.CreateCloudConnection(conn); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating connection: %v", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, connectionView(conn))
	}
}

func handleListConnections(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id query parameter is required")
			return
		}

		conns, err := deps.Store.ListCloudConnections(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing connections: %v", err)
			return
		}

		views := make([]ConnectionView, len(conns))
		for i, c := range conns {
			views[i] = connectionView(c)
		}
		writeJSON(w, views)
	}
}

func handleGetConnection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		conn, err := deps.Store.GetCloudConnection(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "connection not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading connection: %v", err)
			return
		}

		writeJSON(w, connectionView(conn))
	}
}

func handlePatchConnection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		conn, err := deps.Store.GetCloudConnection(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "connection not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading connection: %v", err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req ConnectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if req.Name != "" {
			conn.Name = req.Name
		}
		if req.Credentials != "" {
			conn.Credentials = req.Credentials
		}
		if req.SyncPath != "" {
			conn.SyncPath = req.SyncPath
		}
		if req.IncludedPaths != nil {
			conn.IncludedPaths = req.IncludedPaths
		}
		if req.ExcludePatterns != nil {
			conn.ExcludePatterns = req.ExcludePatterns
		}
		if req.FileExtensions != nil {
			conn.FileExtensions = req.FileExtensions
		}
		if req.SyncEnabled != nil {
			conn.SyncEnabled = *req.SyncEnabled
		}
		if req.AutoSync != nil {
			conn.AutoSync = *req.AutoSync
		}
		if req.SyncIntervalSec > 0 {
			conn.SyncInterval = time.Duration(req.SyncIntervalSec) * time.Second
		}

		if err := deps.Store.UpdateCloudConnectionSettings(conn); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "updating connection: %v", err)
			return
		}

		writeJSON(w, connectionView(conn))
	}
}

func handleTriggerSync(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := deps.Sync.Trigger(r.Context(), id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "connection not found")
			return
		case errors.Is(err, storage.ErrSyncInProgress):
			httpError(w, http.StatusConflict, "conflict", "a sync is already running for this connection")
			return
		case errors.Is(err, syncpkg.ErrSyncDisabled):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "sync is disabled for this connection")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "triggering sync: %v", err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{
			"job_id": job.ID,
			"status": job.Status,
		})
	}
}

func handleSyncStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		status, err := deps.Sync.Status(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "connection not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading sync status: %v", err)
			return
		}

		writeJSON(w, syncStatusView(status))
	}
}

func handleListJobs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 10, 100)

		jobs, err := deps.Sync.Jobs(id, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing jobs: %v", err)
			return
		}

		views := make([]JobView, len(jobs))
		for i, j := range jobs {
			views[i] = jobView(j)
		}
		writeJSON(w, views)
	}
}
