package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const sqliteKeywordSchema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

-- content holds analyzed text: tokenized, stop words removed.
CREATE VIRTUAL TABLE IF NOT EXISTS fts_passages USING fts5(
	passage_id UNINDEXED,
	document_id UNINDEXED,
	content,
	tokenize='porter unicode61'
);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_vocab USING fts5vocab(fts_passages, 'row');

CREATE TABLE IF NOT EXISTS passage_ids (
	passage_id  TEXT PRIMARY KEY,
	document_id TEXT NOT NULL
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// SQLiteBM25Index is the FTS5 keyword backend. It shares the prose
// analysis of the Bleve backend, so both rank the same words.
type SQLiteBM25Index struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	closed    bool
	stopWords map[string]struct{}
}

var _ BM25Index = (*SQLiteBM25Index)(nil)

// NewSQLiteBM25Index opens the FTS5 index at path, or an in-memory one if
// path is empty. A file that fails its integrity check is discarded and
// recreated empty; the documents must then be re-indexed.
func NewSQLiteBM25Index(path string, config BM25Config) (*SQLiteBM25Index, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create keyword index directory: %w", err)
		}
		if err := discardIfCorrupt(path); err != nil {
			return nil, err
		}
		dsn = path
	}

	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteKeywordSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("keyword schema: %w", err)
	}

	return &SQLiteBM25Index{
		db:        db,
		path:      path,
		stopWords: BuildStopWordMap(config.StopWords),
	}, nil
}

// discardIfCorrupt removes path and its WAL files when the database there
// does not pass PRAGMA integrity_check or lacks the passage table.
func discardIfCorrupt(path string) error {
	problem := checkSQLiteKeywordFile(path)
	if problem == nil {
		return nil
	}
	slog.Warn("keyword_index_corrupted",
		slog.String("path", path),
		slog.String("error", problem.Error()))

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove corrupt keyword index %s: %w (found: %v)", path, err, problem)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	slog.Info("keyword_index_reset", slog.String("path", path))
	return nil
}

func checkSQLiteKeywordFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	var verdict string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&verdict); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if verdict != "ok" {
		return fmt.Errorf("integrity check: %s", verdict)
	}

	var tables int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='fts_passages'`).Scan(&tables); err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if tables == 0 {
		return fmt.Errorf("table fts_passages missing")
	}
	return nil
}

func (s *SQLiteBM25Index) analyze(text string) []string {
	return FilterStopWords(TokenizeText(text), s.stopWords)
}

// Index stores docs, replacing any passage already stored under the same
// ID. The batch is written in one transaction.
func (s *SQLiteBM25Index) Index(ctx context.Context, docs []*IndexDoc) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		// FTS5 has no REPLACE, so each passage is removed before insert.
		steps := []string{
			`DELETE FROM fts_passages WHERE passage_id = ?`,
			`INSERT INTO fts_passages(passage_id, document_id, content) VALUES (?, ?, ?)`,
			`INSERT OR REPLACE INTO passage_ids(passage_id, document_id) VALUES (?, ?)`,
		}
		stmts := make([]*sql.Stmt, len(steps))
		for i, q := range steps {
			stmt, err := tx.PrepareContext(ctx, q)
			if err != nil {
				return fmt.Errorf("prepare: %w", err)
			}
			defer stmt.Close()
			stmts[i] = stmt
		}

		for _, doc := range docs {
			content := strings.Join(s.analyze(doc.Content), " ")
			if _, err := stmts[0].ExecContext(ctx, doc.ID); err != nil {
				return fmt.Errorf("replace passage %s: %w", doc.ID, err)
			}
			if _, err := stmts[1].ExecContext(ctx, doc.ID, doc.DocumentID, content); err != nil {
				return fmt.Errorf("index passage %s: %w", doc.ID, err)
			}
			if _, err := stmts[2].ExecContext(ctx, doc.ID, doc.DocumentID); err != nil {
				return fmt.Errorf("track passage %s: %w", doc.ID, err)
			}
		}
		return nil
	})
}

// Search ranks passages of documentID against question with FTS5 bm25().
// Terms are OR-ed so a passage needs only one of them to match. An empty
// documentID searches every document.
func (s *SQLiteBM25Index) Search(ctx context.Context, documentID, question string, limit int) ([]*BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	terms := s.analyze(question)
	if len(terms) == 0 {
		return []*BM25Result{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	q, args := buildFTSQuery(terms, documentID, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if isFTSSyntaxError(err) {
			return []*BM25Result{}, nil
		}
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	defer rows.Close()

	results := make([]*BM25Result, 0, limit)
	for rows.Next() {
		var (
			id   string
			rank float64
		)
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("scan keyword hit: %w", err)
		}
		// bm25() is negative with lower meaning better.
		results = append(results, &BM25Result{ID: id, Score: -rank, MatchedTerms: terms})
	}
	return results, rows.Err()
}

// buildFTSQuery quotes every term so FTS5 operators in study text
// ("AND", "NEAR", "-") are matched literally.
func buildFTSQuery(terms []string, documentID string, limit int) (string, []any) {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}

	var b strings.Builder
	b.WriteString(`SELECT passage_id, bm25(fts_passages) AS rank FROM fts_passages WHERE fts_passages MATCH ?`)
	args := []any{strings.Join(quoted, " OR ")}
	if documentID != "" {
		b.WriteString(` AND document_id = ?`)
		args = append(args, documentID)
	}
	b.WriteString(` ORDER BY rank LIMIT ?`)
	return b.String(), append(args, limit)
}

func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5:") || strings.Contains(msg, "syntax error")
}

// Delete removes passages by ID. Unknown IDs are ignored.
func (s *SQLiteBM25Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	in, args := placeholders(ids)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"fts_passages", "passage_ids"} {
			q := fmt.Sprintf("DELETE FROM %s WHERE passage_id IN (%s)", table, in)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *SQLiteBM25Index) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// AllIDs returns every stored passage ID in ascending order.
func (s *SQLiteBM25Index) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	rows, err := s.db.Query(`SELECT passage_id FROM passage_ids ORDER BY passage_id`)
	if err != nil {
		return nil, fmt.Errorf("list passage ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteBM25Index) Stats() *IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &IndexStats{}
	}

	var stats IndexStats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM passage_ids`).Scan(&stats.DocumentCount); err != nil {
		return &IndexStats{}
	}
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM fts_vocab`).Scan(&stats.TermCount)
	return &stats
}

// Close truncates the WAL into the main file and closes the database.
func (s *SQLiteBM25Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
