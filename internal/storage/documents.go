package storage

import (
	"database/sql"
	"time"
)

const documentColumns = `id, user_id, IFNULL(folder_id, ''), file_name, original_name,
	file_path, file_type, file_size, content_hash, content, indexed, created_at, updated_at`

func (s *Store) scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	var createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.UserID, &d.FolderID, &d.FileName, &d.OriginalName,
		&d.FilePath, &d.FileType, &d.FileSize, &d.ContentHash, &d.Content, &d.Indexed,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return Document{}, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Document{}, err
	}
	return d, nil
}

func (s *Store) CreateDocument(d Document) error {
	_, err := s.db.Exec(`
		INSERT INTO documents (id, user_id, folder_id, file_name, original_name,
			file_path, file_type, file_size, content_hash, content, indexed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, nullStr(d.FolderID), d.FileName, d.OriginalName,
		d.FilePath, d.FileType, d.FileSize, d.ContentHash, d.Content, d.Indexed,
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	return err
}

// UpdateDocument replaces the mutable fields of an existing document: path,
// size, hash, folder placement, and the indexed flag (cleared when content
// changed so the document is picked up for re-indexing).
func (s *Store) UpdateDocument(d Document) error {
	res, err := s.db.Exec(`
		UPDATE documents
		SET folder_id = ?, file_name = ?, file_path = ?, file_type = ?, file_size = ?,
			content_hash = ?, content = ?, indexed = ?, updated_at = ?
		WHERE id = ?`,
		nullStr(d.FolderID), d.FileName, d.FilePath, d.FileType, d.FileSize,
		d.ContentHash, d.Content, d.Indexed, formatTime(time.Now()), d.ID,
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

func (s *Store) GetDocument(id string) (Document, error) {
	return s.scanDocument(s.db.QueryRow(
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
}

// FindDocumentByName returns the user's document with the given original
// filename. The sync engine uses this for change detection.
func (s *Store) FindDocumentByName(userID, originalName string) (Document, error) {
	return s.scanDocument(s.db.QueryRow(
		`SELECT `+documentColumns+` FROM documents
		WHERE user_id = ? AND original_name = ?
		ORDER BY created_at ASC LIMIT 1`, userID, originalName))
}

// SearchDocuments returns indexed documents whose extracted text or name
// matches the query, newest first.
func (s *Store) SearchDocuments(userID, query string, limit int) ([]Document, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(
		`SELECT `+documentColumns+` FROM documents
		WHERE user_id = ? AND indexed = 1 AND (content LIKE ? OR original_name LIKE ?)
		ORDER BY updated_at DESC LIMIT ?`,
		userID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		d, err := s.scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// --- Folders ---

// FindFolder looks up a folder by its (user, name, parent) identity.
// parentID may be empty for root-level folders.
func (s *Store) FindFolder(userID, name, parentID string) (Folder, error) {
	var f Folder
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, user_id, name, IFNULL(parent_id, ''), created_at
		FROM folders WHERE user_id = ? AND name = ? AND IFNULL(parent_id, '') = ?`,
		userID, name, parentID,
	).Scan(&f.ID, &f.UserID, &f.Name, &f.ParentID, &createdAt)
	if err == sql.ErrNoRows {
		return Folder{}, ErrNotFound
	}
	if err != nil {
		return Folder{}, err
	}
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return Folder{}, err
	}
	return f, nil
}

func (s *Store) CreateFolder(f Folder) error {
	_, err := s.db.Exec(`
		INSERT INTO folders (id, user_id, name, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.Name, nullStr(f.ParentID), formatTime(f.CreatedAt),
	)
	return err
}

// DeleteFolder removes a folder. Its documents are reparented to root
// (folder_id NULL), not deleted.
func (s *Store) DeleteFolder(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE documents SET folder_id = NULL WHERE folder_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM folders WHERE id = ?`, id)
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
	return tx.Commit()
}
