package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SQLitePassageStore is the document and passage catalog backed by SQLite.
type SQLitePassageStore struct {
	db *sql.DB
}

var _ PassageStore = (*SQLitePassageStore)(nil)

// NewSQLitePassageStore opens the catalog at path, or in memory if path is empty.
func NewSQLitePassageStore(path string) (*SQLitePassageStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLitePassageStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return s, nil
}

func (s *SQLitePassageStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		source_path   TEXT NOT NULL DEFAULT '',
		content_hash  TEXT NOT NULL DEFAULT '',
		page_count    INTEGER NOT NULL DEFAULT 0,
		passage_count INTEGER NOT NULL DEFAULT 0,
		indexed_at    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS passages (
		id          TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		page        INTEGER NOT NULL,
		ordinal     INTEGER NOT NULL,
		section     TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL,
		token_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_passages_document ON passages(document_id, ordinal);
	`)
	return err
}

// SaveDocument upserts doc and replaces all of its passages in one transaction.
func (s *SQLitePassageStore) SaveDocument(ctx context.Context, doc *Document, passages []*Passage) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	indexedAt := doc.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, source_path, content_hash, page_count, passage_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source_path = excluded.source_path,
			content_hash = excluded.content_hash,
			page_count = excluded.page_count,
			passage_count = excluded.passage_count,
			indexed_at = excluded.indexed_at`,
		doc.ID, doc.Title, doc.SourcePath, doc.ContentHash, doc.PageCount, len(passages), indexedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("failed to clear passages of %s: %w", doc.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (id, document_id, page, ordinal, section, content, token_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare passage statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range passages {
		if _, err := stmt.ExecContext(ctx, p.ID, doc.ID, p.Page, p.Ordinal, p.Section, p.Content, p.TokenCount); err != nil {
			return fmt.Errorf("failed to save passage %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document %s: %w", doc.ID, err)
	}

	doc.PassageCount = len(passages)
	doc.IndexedAt = time.UnixMilli(indexedAt.UnixMilli())
	return nil
}

// GetDocument returns the document with id, or ErrNotFound.
func (s *SQLitePassageStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, source_path, content_hash, page_count, passage_count, indexed_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns all documents ordered by title.
func (s *SQLitePassageStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, source_path, content_hash, page_count, passage_count, indexed_at
		FROM documents ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetPassages returns the passages among ids that exist, keyed by ID.
func (s *SQLitePassageStore) GetPassages(ctx context.Context, ids []string) (map[string]*Passage, error) {
	out := make(map[string]*Passage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	inClause, args := placeholders(ids)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, document_id, page, ordinal, section, content, token_count
		FROM passages WHERE id IN (%s)`, inClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get passages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Page, &p.Ordinal, &p.Section, &p.Content, &p.TokenCount); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}

// PassageIDs returns the passage IDs of documentID in ordinal order.
func (s *SQLitePassageStore) PassageIDs(ctx context.Context, documentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM passages WHERE document_id = ? ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list passages of %s: %w", documentID, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan passage ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument removes a document and, by cascade, its passages.
func (s *SQLitePassageStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// Close closes the catalog.
func (s *SQLitePassageStore) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*Document, error) {
	var doc Document
	var indexedAt int64
	if err := r.Scan(&doc.ID, &doc.Title, &doc.SourcePath, &doc.ContentHash,
		&doc.PageCount, &doc.PassageCount, &indexedAt); err != nil {
		return nil, err
	}
	doc.IndexedAt = time.UnixMilli(indexedAt)
	return &doc, nil
}
