// Package cloud abstracts remote storage providers behind a small capability
// interface: single-level listing, lazy recursive traversal, download, and
// metadata lookup.
package cloud

import (
	"context"
	"time"
)

// FileRecord describes one remote file or directory.
type FileRecord struct {
	Path     string
	Name     string
	Size     int64
	Hash     string // provider content digest; used for change detection
	Modified time.Time
	IsDir    bool
}

// Connector is the capability set every provider implements.
type Connector interface {
	// List returns the direct children of path.
	List(ctx context.Context, path string) ([]FileRecord, error)

	// Download fetches a remote file to localPath, creating parent
	// directories as needed.
	Download(ctx context.Context, remotePath, localPath string) error

	// Metadata returns the record for a single path.
	Metadata(ctx context.Context, path string) (FileRecord, error)
}

// Traverse starts a lazy depth-first traversal rooted at path. Directories
// are expanded only as the consumer advances, so an arbitrarily large remote
// tree is never buffered up front. A Traversal is not restartable; a fresh
// traversal always begins again from the root.
func Traverse(conn Connector, path string, filter Filter) *Traversal {
	return &Traversal{
		conn:   conn,
		filter: filter,
		root:   path,
	}
}

// Traversal yields file records depth-first in the order directories list
// them. Next returns ok=false when the tree is exhausted; a non-nil error
// means the traversal as a whole failed and cannot continue.
type Traversal struct {
	conn    Connector
	filter  Filter
	root    string
	started bool
	frames  []frame
}

type frame struct {
	entries []FileRecord
	next    int
}

// Next advances to the next admitted file record.
func (t *Traversal) Next(ctx context.Context) (FileRecord, bool, error) {
	if !t.started {
		t.started = true
		entries, err := t.conn.List(ctx, t.root)
		if err != nil {
			return FileRecord{}, false, err
		}
		t.frames = append(t.frames, frame{entries: entries})
	}

	for len(t.frames) > 0 {
		top := &t.frames[len(t.frames)-1]
		if top.next >= len(top.entries) {
			t.frames = t.frames[:len(t.frames)-1]
			continue
		}

		item := top.entries[top.next]
		top.next++

		if !t.filter.admitPath(item.Path) {
			continue
		}

		if item.IsDir {
			entries, err := t.conn.List(ctx, item.Path)
			if err != nil {
				return FileRecord{}, false, err
			}
			t.frames = append(t.frames, frame{entries: entries})
			continue
		}

		if !t.filter.allowsExtension(item.Name) {
			continue
		}
		return item, true, nil
	}

	return FileRecord{}, false, nil
}
