package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kalambet/jarvis/internal/storage"
)

func ingestFixture(t *testing.T) (*Service, *storage.Store, string) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	user, err := store.GetOrCreateUser(88, "ingest", "Ing")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	return NewService(store), store, user.ID
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestCreateOrUpdate_NewDocument(t *testing.T) {
	svc, store, userID := ingestFixture(t)

	path := writeTempFile(t, "notes.md", "# Heading\nbody")
	id, err := svc.CreateOrUpdate(context.Background(), File{
		UserID:       userID,
		LocalPath:    path,
		OriginalName: "notes.md",
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}

	doc, err := store.GetDocument(id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.FileType != "markdown" {
		t.Errorf("FileType = %q, want markdown", doc.FileType)
	}
	if doc.FileSize != int64(len("# Heading\nbody")) {
		t.Errorf("FileSize = %d", doc.FileSize)
	}
	if doc.ContentHash == "" {
		t.Error("ContentHash should be computed from file bytes")
	}
	if doc.Indexed {
		t.Error("new document should not be indexed yet")
	}
}

// TestCreateOrUpdate_UpdatesInPlace verifies a re-ingested name keeps its
// document identity but gets the new hash and a cleared indexed flag.
func TestCreateOrUpdate_UpdatesInPlace(t *testing.T) {
	svc, store, userID := ingestFixture(t)

	path := writeTempFile(t, "notes.md", "version one")
	first, err := svc.CreateOrUpdate(context.Background(), File{
		UserID: userID, LocalPath: path, OriginalName: "notes.md",
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}
	if err := svc.Index(context.Background(), first); err != nil {
		t.Fatalf("Index: %v", err)
	}

	path2 := writeTempFile(t, "notes.md", "version two, longer")
	second, err := svc.CreateOrUpdate(context.Background(), File{
		UserID: userID, LocalPath: path2, OriginalName: "notes.md", FolderID: "",
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate (second): %v", err)
	}
	if second != first {
		t.Errorf("document id changed: %q -> %q", first, second)
	}

	doc, err := store.GetDocument(first)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Indexed {
		t.Error("indexed flag should be cleared on update")
	}
	if doc.FilePath != path2 {
		t.Errorf("FilePath = %q, want %q", doc.FilePath, path2)
	}
	if doc.FileSize != int64(len("version two, longer")) {
		t.Errorf("FileSize = %d", doc.FileSize)
	}
}

func TestCreateOrUpdate_PresuppliedHash(t *testing.T) {
	svc, store, userID := ingestFixture(t)

	path := writeTempFile(t, "a.txt", "content")
	id, err := svc.CreateOrUpdate(context.Background(), File{
		UserID: userID, LocalPath: path, OriginalName: "a.txt", ContentHash: "provider-digest",
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}

	doc, err := store.GetDocument(id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.ContentHash != "provider-digest" {
		t.Errorf("ContentHash = %q, want the supplied digest", doc.ContentHash)
	}
}

func TestCreateOrUpdate_MissingFile(t *testing.T) {
	svc, _, userID := ingestFixture(t)

	_, err := svc.CreateOrUpdate(context.Background(), File{
		UserID: userID, LocalPath: "/no/such/file.md", OriginalName: "file.md",
	})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIndex_ExtractsAndMarksSearchable(t *testing.T) {
	svc, store, userID := ingestFixture(t)

	path := writeTempFile(t, "recipe.md", "Pancakes need flour and eggs.")
	id, err := svc.CreateOrUpdate(context.Background(), File{
		UserID: userID, LocalPath: path, OriginalName: "recipe.md",
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}

	if err := svc.Index(context.Background(), id); err != nil {
		t.Fatalf("Index: %v", err)
	}

	doc, err := store.GetDocument(id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if !doc.Indexed {
		t.Error("document should be marked indexed")
	}
	if doc.Content != "Pancakes need flour and eggs." {
		t.Errorf("Content = %q", doc.Content)
	}

	// Indexed documents become searchable.
	results, err := store.SearchDocuments(userID, "flour", 5)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Errorf("search results = %+v", results)
	}
}

func TestIndex_UnknownDocument(t *testing.T) {
	svc, _, _ := ingestFixture(t)

	if err := svc.Index(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown document")
	}
}

func TestFileType(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"a.pdf", "pdf"},
		{"A.PDF", "pdf"},
		{"notes.md", "markdown"},
		{"plain.txt", "text"},
		{"report.docx", "document"},
		{"photo.JPG", "image"},
		{"archive.zip", "other"},
	}
	for _, tc := range cases {
		if got := fileType(tc.name); got != tc.want {
			t.Errorf("fileType(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestExtractText_PlainFormats(t *testing.T) {
	path := writeTempFile(t, "a.txt", "plain body")

	got, err := ExtractText(path, "text")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "plain body" {
		t.Errorf("text = %q", got)
	}

	// Unextractable types yield empty content without error.
	got, err = ExtractText(path, "image")
	if err != nil {
		t.Fatalf("ExtractText (image): %v", err)
	}
	if got != "" {
		t.Errorf("image content = %q, want empty", got)
	}
}
