package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Aman-CERP/studyrag/internal/store"
)

// ErrNilStore is returned by NewBM25Indexer without WithStore.
var ErrNilStore = errors.New("BM25 store is required")

// BM25Indexer writes passages to a keyword index, scoped by document.
// A passage's section heading is indexed with its text, so a question
// naming a chapter topic matches passages filed under that heading.
type BM25Indexer struct {
	mu     sync.RWMutex
	store  store.BM25Index
	closed bool
}

// Option configures a BM25Indexer.
type Option func(*BM25Indexer)

// WithStore sets the keyword index. Required.
func WithStore(s store.BM25Index) Option {
	return func(i *BM25Indexer) { i.store = s }
}

// NewBM25Indexer creates a keyword indexer.
//
//	idx, err := NewBM25Indexer(WithStore(bleveIndex))
func NewBM25Indexer(opts ...Option) (*BM25Indexer, error) {
	i := &BM25Indexer{}
	for _, opt := range opts {
		opt(i)
	}
	if i.store == nil {
		return nil, ErrNilStore
	}
	return i, nil
}

// keywordText is the text indexed for p.
func keywordText(p *store.Passage) string {
	if p.Section == "" {
		return p.Content
	}
	return p.Section + "\n\n" + p.Content
}

// Index adds or replaces passages.
func (i *BM25Indexer) Index(ctx context.Context, passages []*store.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	docs := make([]*store.IndexDoc, 0, len(passages))
	for _, p := range passages {
		docs = append(docs, &store.IndexDoc{
			ID:         p.ID,
			DocumentID: p.DocumentID,
			Content:    keywordText(p),
		})
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.store.Index(ctx, docs); err != nil {
		return fmt.Errorf("write %d passages: %w", len(docs), err)
	}
	return nil
}

// Delete removes passages. Unknown IDs are ignored.
func (i *BM25Indexer) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("remove %d passages: %w", len(ids), err)
	}
	return nil
}

// Clear removes every passage of every document.
func (i *BM25Indexer) Clear(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	ids, err := i.store.AllIDs()
	if err != nil {
		return fmt.Errorf("list passages: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := i.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("remove all passages: %w", err)
	}
	return nil
}

// Stats reports indexed passages and distinct terms.
func (i *BM25Indexer) Stats() IndexStats {
	i.mu.RLock()
	defer i.mu.RUnlock()

	s := i.store.Stats()
	return IndexStats{PassageCount: s.DocumentCount, TermCount: s.TermCount}
}

// Close closes the keyword index once.
func (i *BM25Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	return i.store.Close()
}

var _ Indexer = (*BM25Indexer)(nil)
