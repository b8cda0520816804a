package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrSyncInProgress is returned when a sync is triggered for a connection
// that already has an in-progress job.
var ErrSyncInProgress = errors.New("sync already in progress")

// Sync status values shared by SyncJob, FileOperation, and the connection's
// last-sync status. The only legal job transitions are
// pending -> in_progress -> completed|failed.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Cloud provider types.
const (
	ProviderYandexDisk = "yandex_disk"
	ProviderICloud     = "icloud"
)

// File operation kinds. An operation starts as "check" and is finalized as
// "skip" (hash unchanged) or "download".
const (
	OpCheck    = "check"
	OpSkip     = "skip"
	OpDownload = "download"
)

type User struct {
	ID         string
	TelegramID int64
	Username   string
	FirstName  string
	CreatedAt  time.Time
}

type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Priority    string
	Done        bool
	CreatedAt   time.Time
}

type CalendarEvent struct {
	ID        string
	UserID    string
	Title     string
	Location  string
	StartTime time.Time
	EndTime   time.Time // zero when open-ended
	CreatedAt time.Time
}

type Reminder struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	RemindAt  time.Time
	Sent      bool
	CreatedAt time.Time
}

type Document struct {
	ID           string
	UserID       string
	FolderID     string // empty means root
	FileName     string
	OriginalName string
	FilePath     string
	FileType     string
	FileSize     int64
	ContentHash  string
	Content      string // extracted text, filled by indexing
	Indexed      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Folder struct {
	ID        string
	UserID    string
	Name      string
	ParentID  string // empty means root
	CreatedAt time.Time
}

// CloudConnection is one user's durable link to a remote storage provider.
type CloudConnection struct {
	ID              string
	UserID          string
	Provider        string
	Name            string
	Credentials     string // opaque, provider-specific blob
	SyncPath        string
	IncludedPaths   []string
	ExcludePatterns []string
	FileExtensions  []string
	SyncEnabled     bool
	AutoSync        bool
	SyncInterval    time.Duration
	LastSyncAt      time.Time
	LastSyncStatus  string
	LastError       string
	TotalSynced     int
	TotalProcessed  int
	CreatedAt       time.Time
}

// SyncJob is one traversal attempt against a CloudConnection. TotalFiles is
// a running estimate while the lazy traversal is still streaming results.
type SyncJob struct {
	ID             string
	ConnectionID   string
	Status         string
	TotalFiles     int
	ProcessedFiles int
	FailedFiles    int
	NewFiles       int
	UpdatedFiles   int
	StartedAt      time.Time
	CompletedAt    time.Time
	ErrorMessage   string
	CreatedAt      time.Time
}

// FileOperation is the per-file audit record within a SyncJob. It is created
// before the skip/download decision is known so partially-completed jobs stay
// visible.
type FileOperation struct {
	ID           string
	JobID        string
	DocumentID   string
	FilePath     string
	FileName     string
	FileSize     int64
	FileHash     string
	Operation    string
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
