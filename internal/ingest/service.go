// Package ingest accepts local files and turns them into knowledge-base
// documents: metadata capture, content hashing, text extraction, and the
// create-or-update decision against previously ingested documents.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/jarvis/internal/storage"
)

// File carries one local file into ingestion.
type File struct {
	UserID       string
	LocalPath    string
	OriginalName string
	FolderID     string
	ContentHash  string // optional; computed from file bytes when empty
}

// Store is the persistence surface ingestion needs. *storage.Store satisfies it.
type Store interface {
	FindDocumentByName(userID, originalName string) (storage.Document, error)
	CreateDocument(d storage.Document) error
	UpdateDocument(d storage.Document) error
	GetDocument(id string) (storage.Document, error)
}

// Service implements the document ingestion collaborator boundary.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a Service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store, logger: slog.Default()}
}

// CreateOrUpdate records the file as a document and returns its id. When a
// document with the same original name already exists for the user, that
// document is updated in place — same identity, new hash/size/folder — and
// its indexed flag is cleared so it gets re-indexed.
func (s *Service) CreateOrUpdate(ctx context.Context, f File) (string, error) {
	info, err := os.Stat(f.LocalPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", f.LocalPath, err)
	}

	hash := f.ContentHash
	if hash == "" {
		if hash, err = hashFile(f.LocalPath); err != nil {
			return "", err
		}
	}

	now := time.Now().UTC()
	existing, err := s.store.FindDocumentByName(f.UserID, f.OriginalName)
	if err != nil && err != storage.ErrNotFound {
		return "", fmt.Errorf("looking up document: %w", err)
	}
	if err == nil {
		existing.FolderID = f.FolderID
		existing.FileName = filepath.Base(f.LocalPath)
		existing.FilePath = f.LocalPath
		existing.FileType = fileType(f.OriginalName)
		existing.FileSize = info.Size()
		existing.ContentHash = hash
		existing.Indexed = false
		if err := s.store.UpdateDocument(existing); err != nil {
			return "", fmt.Errorf("updating document: %w", err)
		}
		s.logger.Info("document updated", "id", existing.ID, "name", f.OriginalName)
		return existing.ID, nil
	}

	doc := storage.Document{
		ID:           uuid.New().String(),
		UserID:       f.UserID,
		FolderID:     f.FolderID,
		FileName:     filepath.Base(f.LocalPath),
		OriginalName: f.OriginalName,
		FilePath:     f.LocalPath,
		FileType:     fileType(f.OriginalName),
		FileSize:     info.Size(),
		ContentHash:  hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateDocument(doc); err != nil {
		return "", fmt.Errorf("creating document: %w", err)
	}
	s.logger.Info("document created", "id", doc.ID, "name", f.OriginalName)
	return doc.ID, nil
}

// Index extracts the document's text and marks it searchable.
func (s *Service) Index(ctx context.Context, documentID string) error {
	doc, err := s.store.GetDocument(documentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", documentID, err)
	}

	text, err := ExtractText(doc.FilePath, doc.FileType)
	if err != nil {
		return fmt.Errorf("extracting text from %s: %w", doc.FilePath, err)
	}

	doc.Content = text
	doc.Indexed = true
	if err := s.store.UpdateDocument(doc); err != nil {
		return fmt.Errorf("storing extracted text: %w", err)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// fileType maps a filename extension to a coarse document type.
func fileType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "pdf"
	case ".md":
		return "markdown"
	case ".txt":
		return "text"
	case ".doc", ".docx":
		return "document"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	default:
		return "other"
	}
}
