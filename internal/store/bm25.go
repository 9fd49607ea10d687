package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	fieldContent    = "content"
	fieldDocumentID = "document_id"

	defaultSearchLimit = 10
)

// BleveBM25Index is the default keyword backend, a bleve index of
// passages with the document ID kept as an exact-match scope field.
type BleveBM25Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ BM25Index = (*BleveBM25Index)(nil)

type blevePassage struct {
	Content    string `json:"content"`
	DocumentID string `json:"document_id"`
}

// NewBleveBM25Index opens the index directory at path, creating it when
// missing, or builds an in-memory index when path is empty. A damaged
// directory is removed and recreated empty.
func NewBleveBM25Index(path string, _ BM25Config) (*BleveBM25Index, error) {
	m, err := passageMapping()
	if err != nil {
		return nil, err
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		idx, err = openBleveDir(path, m)
	}
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	return &BleveBM25Index{index: idx, path: path}, nil
}

func openBleveDir(path string, m mapping.IndexMapping) (bleve.Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if problem := checkBleveMeta(path); problem != nil {
		if err := resetBleveDir(path, problem); err != nil {
			return nil, err
		}
	}

	idx, err := bleve.Open(path)
	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		return bleve.New(path, m)
	case err != nil && looksCorrupt(err):
		if rmErr := resetBleveDir(path, err); rmErr != nil {
			return nil, rmErr
		}
		return bleve.New(path, m)
	}
	return idx, err
}

func resetBleveDir(path string, problem error) error {
	slog.Warn("keyword_index_corrupted",
		slog.String("path", path),
		slog.String("error", problem.Error()))
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove corrupt keyword index %s: %w (found: %v)", path, err, problem)
	}
	slog.Info("keyword_index_reset", slog.String("path", path))
	return nil
}

// checkBleveMeta reports a directory whose index_meta.json is missing,
// empty, or not JSON. An absent directory is fine.
func checkBleveMeta(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("index_meta.json missing")
	case err != nil:
		return fmt.Errorf("read index_meta.json: %w", err)
	case len(data) == 0:
		return fmt.Errorf("index_meta.json is empty")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json: %w", err)
	}
	return nil
}

func looksCorrupt(err error) bool {
	if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	for _, sign := range []string{
		"unexpected end of JSON",
		"error parsing mapping JSON",
		"failed to load segment",
		"error opening bolt",
	} {
		if strings.Contains(msg, sign) {
			return true
		}
	}
	return false
}

// Index writes docs in one batch. Re-indexing an ID replaces it.
func (b *BleveBM25Index) Index(_ context.Context, docs []*IndexDoc) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, blevePassage{Content: doc.Content, DocumentID: doc.DocumentID}); err != nil {
			return fmt.Errorf("index passage %s: %w", doc.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search ranks passages of documentID against question. An empty
// documentID searches every document.
func (b *BleveBM25Index) Search(ctx context.Context, documentID, question string, limit int) ([]*BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if strings.TrimSpace(question) == "" {
		return []*BM25Result{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	req := bleve.NewSearchRequest(scopedQuery(documentID, question))
	req.Size = limit
	req.IncludeLocations = true

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}

	results := make([]*BM25Result, len(res.Hits))
	for i, hit := range res.Hits {
		results[i] = &BM25Result{ID: hit.ID, Score: hit.Score, MatchedTerms: matchedTerms(hit)}
	}
	return results, nil
}

func scopedQuery(documentID, question string) query.Query {
	match := bleve.NewMatchQuery(question)
	match.SetField(fieldContent)
	if documentID == "" {
		return match
	}
	scope := bleve.NewTermQuery(documentID)
	scope.SetField(fieldDocumentID)
	return bleve.NewConjunctionQuery(match, scope)
}

// matchedTerms lists the analyzed content terms a hit matched, sorted.
func matchedTerms(hit *search.DocumentMatch) []string {
	locs := hit.Locations[fieldContent]
	terms := make([]string, 0, len(locs))
	for term := range locs {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Delete removes passages by ID. Unknown IDs are ignored.
func (b *BleveBM25Index) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("remove %d passages: %w", len(ids), err)
	}
	return nil
}

// AllIDs returns every stored passage ID in ascending order.
func (b *BleveBM25Index) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	n, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count passages: %w", err)
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(n)
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("list passage ids: %w", err)
	}

	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *BleveBM25Index) Stats() *IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return &IndexStats{}
	}

	n, _ := b.index.DocCount()
	return &IndexStats{DocumentCount: int(n), TermCount: b.countTerms()}
}

// countTerms walks the content field dictionary. Caller holds b.mu.
func (b *BleveBM25Index) countTerms() int {
	dict, err := b.index.FieldDict(fieldContent)
	if err != nil {
		return 0
	}
	defer func() { _ = dict.Close() }()

	n := 0
	for {
		entry, err := dict.Next()
		if err != nil || entry == nil {
			return n
		}
		n++
	}
}

func (b *BleveBM25Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
