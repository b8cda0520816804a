// Package sync implements the cloud synchronization engine: job execution,
// change detection, folder reconciliation, triggering, and scheduling.
package sync

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/jarvis/internal/storage"
)

// rootFolderName is the implicit folder for files synced from a provider's
// root, where the remote path has no directory segments.
const rootFolderName = "Cloud Storage"

// FolderStore is the persistence surface the reconciler needs.
type FolderStore interface {
	FindFolder(userID, name, parentID string) (storage.Folder, error)
	CreateFolder(f storage.Folder) error
}

// Reconciler mirrors remote directory paths into local Folder rows.
type Reconciler struct {
	store FolderStore
}

// NewReconciler creates a Reconciler over the given store.
func NewReconciler(store FolderStore) *Reconciler {
	return &Reconciler{store: store}
}

// Resolve finds or creates the folder chain for a remote directory path and
// returns the leaf folder's id. It is idempotent: resolving the same path
// twice returns the same leaf and creates nothing on the second call. An
// empty path resolves to the implicit root-level cloud storage folder.
func (r *Reconciler) Resolve(userID, remotePath string) (string, error) {
	clean := strings.Trim(strings.TrimPrefix(remotePath, "disk:"), "/")
	if clean == "" {
		root, err := r.findOrCreate(userID, rootFolderName, "")
		if err != nil {
			return "", err
		}
		return root.ID, nil
	}

	parentID := ""
	var leaf storage.Folder
	for _, segment := range strings.Split(clean, "/") {
		if segment == "" {
			continue
		}
		folder, err := r.findOrCreate(userID, segment, parentID)
		if err != nil {
			return "", err
		}
		leaf = folder
		parentID = folder.ID
	}
	return leaf.ID, nil
}

func (r *Reconciler) findOrCreate(userID, name, parentID string) (storage.Folder, error) {
	folder, err := r.store.FindFolder(userID, name, parentID)
	if err == nil {
		return folder, nil
	}
	if err != storage.ErrNotFound {
		return storage.Folder{}, fmt.Errorf("looking up folder %q: %w", name, err)
	}

	folder = storage.Folder{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.CreateFolder(folder); err != nil {
		// A concurrent sync may have created it between lookup and insert.
		if existing, findErr := r.store.FindFolder(userID, name, parentID); findErr == nil {
			return existing, nil
		}
		return storage.Folder{}, fmt.Errorf("creating folder %q: %w", name, err)
	}
	slog.Debug("created folder", "name", name, "parent_id", parentID)
	return folder, nil
}
