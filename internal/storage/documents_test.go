package storage

import (
	"testing"
	"time"
)

func testDocument(userID, id, originalName string) Document {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return Document{
		ID:           id,
		UserID:       userID,
		FileName:     originalName,
		OriginalName: originalName,
		FilePath:     "/data/downloads/" + originalName,
		FileType:     "markdown",
		FileSize:     128,
		ContentHash:  "abc123",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	s := openTestStore(t)
	u := mustCreateUser(t, s, 10)

	d := testDocument(u.ID, "doc-1", "notes.md")
	if err := s.CreateDocument(d); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	got, err := s.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.OriginalName != "notes.md" {
		t.Errorf("OriginalName = %q, want %q", got.OriginalName, "notes.md")
	}
	if got.FolderID != "" {
		t.Errorf("FolderID = %q, want empty (root)", got.FolderID)
	}
	if got.Indexed {
		t.Error("new document should not be indexed")
	}

	got.Content = "meeting notes"
	got.Indexed = true
	if err := s.UpdateDocument(got); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}

	updated, err := s.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument (after update): %v", err)
	}
	if updated.Content != "meeting notes" || !updated.Indexed {
		t.Errorf("update not persisted: content=%q indexed=%v", updated.Content, updated.Indexed)
	}
}

func TestUpdateDocument_NotFound(t *testing.T) {
	s := openTestStore(t)

	d := testDocument("u", "nope", "nope.txt")
	if err := s.UpdateDocument(d); err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// TestFindDocumentByName verifies change detection lookups are scoped per user.
func TestFindDocumentByName(t *testing.T) {
	s := openTestStore(t)
	alice := mustCreateUser(t, s, 11)
	bob, err := s.GetOrCreateUser(12, "bob", "Bob")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}

	if err := s.CreateDocument(testDocument(alice.ID, "doc-a", "report.pdf")); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	got, err := s.FindDocumentByName(alice.ID, "report.pdf")
	if err != nil {
		t.Fatalf("FindDocumentByName: %v", err)
	}
	if got.ID != "doc-a" {
		t.Errorf("ID = %q, want %q", got.ID, "doc-a")
	}

	if _, err := s.FindDocumentByName(bob.ID, "report.pdf"); err != ErrNotFound {
		t.Errorf("cross-user lookup error = %v, want ErrNotFound", err)
	}
}

// TestSearchDocuments verifies content and name matching and the indexed-only filter.
func TestSearchDocuments(t *testing.T) {
	s := openTestStore(t)
	u := mustCreateUser(t, s, 13)

	byContent := testDocument(u.ID, "doc-content", "journal.md")
	byContent.Content = "grocery list: milk, eggs"
	byContent.Indexed = true

	byName := testDocument(u.ID, "doc-name", "grocery-budget.md")
	byName.Content = "numbers"
	byName.Indexed = true

	unindexed := testDocument(u.ID, "doc-raw", "grocery-raw.md")

	for _, d := range []Document{byContent, byName, unindexed} {
		if err := s.CreateDocument(d); err != nil {
			t.Fatalf("CreateDocument %s: %v", d.ID, err)
		}
	}

	got, err := s.SearchDocuments(u.ID, "grocery", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 (unindexed excluded)", len(got))
	}
	ids := map[string]bool{}
	for _, d := range got {
		ids[d.ID] = true
	}
	if !ids["doc-content"] || !ids["doc-name"] {
		t.Errorf("results = %v, want doc-content and doc-name", ids)
	}
}

func TestFolderIdentityLookup(t *testing.T) {
	s := openTestStore(t)
	u := mustCreateUser(t, s, 14)

	now := time.Now().UTC()
	root := Folder{ID: "f-root", UserID: u.ID, Name: "Obsidian", CreatedAt: now}
	child := Folder{ID: "f-child", UserID: u.ID, Name: "Projects", ParentID: "f-root", CreatedAt: now}
	for _, f := range []Folder{root, child} {
		if err := s.CreateFolder(f); err != nil {
			t.Fatalf("CreateFolder %s: %v", f.ID, err)
		}
	}

	got, err := s.FindFolder(u.ID, "Obsidian", "")
	if err != nil {
		t.Fatalf("FindFolder root: %v", err)
	}
	if got.ID != "f-root" || got.ParentID != "" {
		t.Errorf("root lookup = %+v", got)
	}

	got, err = s.FindFolder(u.ID, "Projects", "f-root")
	if err != nil {
		t.Fatalf("FindFolder child: %v", err)
	}
	if got.ID != "f-child" {
		t.Errorf("child lookup = %+v", got)
	}

	// Same name under a different parent is a different folder.
	if _, err := s.FindFolder(u.ID, "Projects", ""); err != ErrNotFound {
		t.Errorf("root-level Projects error = %v, want ErrNotFound", err)
	}
}

// TestDeleteFolder_ReparentsDocuments verifies documents survive folder
// deletion and move to root.
func TestDeleteFolder_ReparentsDocuments(t *testing.T) {
	s := openTestStore(t)
	u := mustCreateUser(t, s, 15)

	now := time.Now().UTC()
	if err := s.CreateFolder(Folder{ID: "f-del", UserID: u.ID, Name: "Temp", CreatedAt: now}); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	d := testDocument(u.ID, "doc-in-folder", "inside.txt")
	d.FolderID = "f-del"
	if err := s.CreateDocument(d); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	if err := s.DeleteFolder("f-del"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	got, err := s.GetDocument("doc-in-folder")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.FolderID != "" {
		t.Errorf("FolderID = %q, want empty after folder deletion", got.FolderID)
	}

	if err := s.DeleteFolder("f-del"); err != ErrNotFound {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}
