package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/jarvis/internal/cloud"
	"github.com/kalambet/jarvis/internal/ingest"
	"github.com/kalambet/jarvis/internal/storage"
)

// fakeRemote serves a directory tree from a map. Downloads are counted but
// write nothing; the fake ingestor never touches the filesystem.
type fakeRemote struct {
	tree        map[string][]cloud.FileRecord
	listErr     map[string]error
	downloadErr map[string]error
	downloads   []string
}

func (f *fakeRemote) List(_ context.Context, path string) ([]cloud.FileRecord, error) {
	if err := f.listErr[path]; err != nil {
		return nil, err
	}
	return f.tree[path], nil
}

func (f *fakeRemote) Download(_ context.Context, remotePath, _ string) error {
	if err := f.downloadErr[remotePath]; err != nil {
		return err
	}
	f.downloads = append(f.downloads, remotePath)
	return nil
}

func (f *fakeRemote) Metadata(_ context.Context, path string) (cloud.FileRecord, error) {
	return cloud.FileRecord{Path: path}, nil
}

// recordingIngestor persists documents straight into the store so the
// engine's change detection sees them on subsequent runs.
type recordingIngestor struct {
	store   *storage.Store
	indexed []string
}

func (r *recordingIngestor) CreateOrUpdate(_ context.Context, f ingest.File) (string, error) {
	existing, err := r.store.FindDocumentByName(f.UserID, f.OriginalName)
	if err == nil {
		existing.ContentHash = f.ContentHash
		existing.FolderID = f.FolderID
		if err := r.store.UpdateDocument(existing); err != nil {
			return "", err
		}
		return existing.ID, nil
	}
	if err != storage.ErrNotFound {
		return "", err
	}

	now := time.Now().UTC()
	doc := storage.Document{
		ID:           uuid.New().String(),
		UserID:       f.UserID,
		FolderID:     f.FolderID,
		FileName:     f.OriginalName,
		OriginalName: f.OriginalName,
		FilePath:     f.LocalPath,
		ContentHash:  f.ContentHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.CreateDocument(doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (r *recordingIngestor) Index(_ context.Context, documentID string) error {
	r.indexed = append(r.indexed, documentID)
	return nil
}

type engineFixture struct {
	store  *storage.Store
	remote *fakeRemote
	ingest *recordingIngestor
	engine *Engine
	conn   storage.CloudConnection
}

func newEngineFixture(t *testing.T, remote *fakeRemote) *engineFixture {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	user, err := store.GetOrCreateUser(99, "sync", "Sync")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}

	conn := storage.CloudConnection{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		Provider:    storage.ProviderYandexDisk,
		Name:        "test disk",
		Credentials: `{"token":"t"}`,
		SyncPath:    "/Docs",
		SyncEnabled: true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateCloudConnection(conn); err != nil {
		t.Fatalf("CreateCloudConnection: %v", err)
	}

	ing := &recordingIngestor{store: store}
	factory := func(storage.CloudConnection) (cloud.Connector, error) { return remote, nil }
	engine := NewEngine(store, ing, NewReconciler(store), factory, t.TempDir())

	return &engineFixture{store: store, remote: remote, ingest: ing, engine: engine, conn: conn}
}

func (f *engineFixture) runJob(t *testing.T) storage.SyncJob {
	t.Helper()
	job := storage.SyncJob{ID: uuid.New().String(), ConnectionID: f.conn.ID, CreatedAt: time.Now().UTC()}
	if err := f.store.CreateSyncJob(job); err != nil {
		t.Fatalf("CreateSyncJob: %v", err)
	}
	if err := f.engine.Run(context.Background(), f.conn.ID, job.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := f.store.GetSyncJob(job.ID)
	if err != nil {
		t.Fatalf("GetSyncJob: %v", err)
	}
	return got
}

func fileRec(path, name, hash string) cloud.FileRecord {
	return cloud.FileRecord{Path: path, Name: name, Size: 10, Hash: hash}
}

func TestEngineRun_SyncsNewFiles(t *testing.T) {
	remote := &fakeRemote{tree: map[string][]cloud.FileRecord{
		"/Docs": {
			fileRec("/Docs/a.md", "a.md", "h-a"),
			{Path: "/Docs/photo.png", Name: "photo.png", Size: 5, Hash: "h-img"},
			{Path: "/Docs/sub", Name: "sub", IsDir: true},
		},
		"/Docs/sub": {
			fileRec("/Docs/sub/b.md", "b.md", "h-b"),
		},
	}}
	f := newEngineFixture(t, remote)

	job := f.runJob(t)

	if job.Status != storage.StatusCompleted {
		t.Fatalf("job status = %q: %s", job.Status, job.ErrorMessage)
	}
	// The image never enters the per-file loop.
	if job.TotalFiles != 2 || job.NewFiles != 2 || job.FailedFiles != 0 {
		t.Errorf("counters = %+v", job)
	}
	if len(remote.downloads) != 2 {
		t.Errorf("downloads = %v, want 2", remote.downloads)
	}
	if len(f.ingest.indexed) != 2 {
		t.Errorf("indexed %d documents, want 2", len(f.ingest.indexed))
	}

	ops, err := f.store.ListFileOperations(job.ID)
	if err != nil {
		t.Fatalf("ListFileOperations: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d operations, want 2", len(ops))
	}
	for _, op := range ops {
		if op.Operation != storage.OpDownload || op.Status != storage.StatusCompleted || op.DocumentID == "" {
			t.Errorf("operation = %+v", op)
		}
	}

	// Folder chain mirrors the remote directory of the nested file.
	docs, err := f.store.FindDocumentByName(f.conn.UserID, "b.md")
	if err != nil {
		t.Fatalf("FindDocumentByName: %v", err)
	}
	if docs.FolderID == "" {
		t.Error("nested document has no folder")
	}

	conn, err := f.store.GetCloudConnection(f.conn.ID)
	if err != nil {
		t.Fatalf("GetCloudConnection: %v", err)
	}
	if conn.LastSyncStatus != storage.StatusCompleted || conn.LastSyncAt.IsZero() {
		t.Errorf("connection result = %+v", conn)
	}
}

// TestEngineRun_UnchangedFilesSkip verifies the hash comparison: a second run
// over the same tree downloads nothing.
func TestEngineRun_UnchangedFilesSkip(t *testing.T) {
	remote := &fakeRemote{tree: map[string][]cloud.FileRecord{
		"/Docs": {fileRec("/Docs/a.md", "a.md", "h-a")},
	}}
	f := newEngineFixture(t, remote)

	f.runJob(t)
	remote.downloads = nil

	second := f.runJob(t)
	if second.Status != storage.StatusCompleted {
		t.Fatalf("job status = %q", second.Status)
	}
	if second.NewFiles != 0 || second.UpdatedFiles != 0 || second.ProcessedFiles != 1 {
		t.Errorf("counters = %+v", second)
	}
	if len(remote.downloads) != 0 {
		t.Errorf("downloads = %v, want none", remote.downloads)
	}

	ops, err := f.store.ListFileOperations(second.ID)
	if err != nil {
		t.Fatalf("ListFileOperations: %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != storage.OpSkip {
		t.Errorf("ops = %+v, want one skip", ops)
	}
}

// TestEngineRun_ChangedHashRedownloads verifies an updated remote hash counts
// as an update, not a new file.
func TestEngineRun_ChangedHashRedownloads(t *testing.T) {
	remote := &fakeRemote{tree: map[string][]cloud.FileRecord{
		"/Docs": {fileRec("/Docs/a.md", "a.md", "h-v1")},
	}}
	f := newEngineFixture(t, remote)

	f.runJob(t)

	remote.tree["/Docs"] = []cloud.FileRecord{fileRec("/Docs/a.md", "a.md", "h-v2")}
	second := f.runJob(t)
	if second.NewFiles != 0 || second.UpdatedFiles != 1 {
		t.Errorf("counters = %+v", second)
	}
}

// TestEngineRun_PerFileFaultIsolation verifies a failing download is counted
// and recorded but does not abort the job.
func TestEngineRun_PerFileFaultIsolation(t *testing.T) {
	remote := &fakeRemote{
		tree: map[string][]cloud.FileRecord{
			"/Docs": {
				fileRec("/Docs/bad.md", "bad.md", "h-bad"),
				fileRec("/Docs/good.md", "good.md", "h-good"),
			},
		},
		downloadErr: map[string]error{"/Docs/bad.md": errors.New("connection reset")},
	}
	f := newEngineFixture(t, remote)

	job := f.runJob(t)
	if job.Status != storage.StatusCompleted {
		t.Fatalf("job status = %q, want completed despite file failure", job.Status)
	}
	if job.FailedFiles != 1 || job.ProcessedFiles != 1 {
		t.Errorf("counters = %+v", job)
	}

	ops, err := f.store.ListFileOperations(job.ID)
	if err != nil {
		t.Fatalf("ListFileOperations: %v", err)
	}
	if ops[0].Status != storage.StatusFailed || ops[0].ErrorMessage == "" {
		t.Errorf("failed op = %+v", ops[0])
	}
	if ops[1].Status != storage.StatusCompleted {
		t.Errorf("good op = %+v", ops[1])
	}
}

// TestEngineRun_TraversalFailure verifies a whole-traversal error marks both
// the job and the connection failed.
func TestEngineRun_TraversalFailure(t *testing.T) {
	remote := &fakeRemote{
		tree:    map[string][]cloud.FileRecord{},
		listErr: map[string]error{"/Docs": errors.New("401 unauthorized")},
	}
	f := newEngineFixture(t, remote)

	job := storage.SyncJob{ID: uuid.New().String(), ConnectionID: f.conn.ID, CreatedAt: time.Now().UTC()}
	if err := f.store.CreateSyncJob(job); err != nil {
		t.Fatalf("CreateSyncJob: %v", err)
	}

	if err := f.engine.Run(context.Background(), f.conn.ID, job.ID); err == nil {
		t.Fatal("expected traversal error to surface")
	}

	got, err := f.store.GetSyncJob(job.ID)
	if err != nil {
		t.Fatalf("GetSyncJob: %v", err)
	}
	if got.Status != storage.StatusFailed || got.ErrorMessage == "" {
		t.Errorf("job = %+v", got)
	}

	conn, err := f.store.GetCloudConnection(f.conn.ID)
	if err != nil {
		t.Fatalf("GetCloudConnection: %v", err)
	}
	if conn.LastSyncStatus != storage.StatusFailed || conn.LastError == "" {
		t.Errorf("connection = %+v", conn)
	}
}
