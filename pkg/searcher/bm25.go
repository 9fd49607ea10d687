package searcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/studyrag/internal/store"
)

// BM25Searcher is the keyword retrieval source.
type BM25Searcher struct {
	store store.BM25Index
}

// BM25Option configures BM25Searcher.
type BM25Option func(*BM25Searcher)

// WithBM25Store sets the keyword index. Required.
func WithBM25Store(s store.BM25Index) BM25Option {
	return func(b *BM25Searcher) { b.store = s }
}

// NewBM25Searcher creates a keyword searcher.
//
// Returns ErrNilBM25Store without WithBM25Store.
func NewBM25Searcher(opts ...BM25Option) (*BM25Searcher, error) {
	s := &BM25Searcher{}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		return nil, ErrNilBM25Store
	}
	return s, nil
}

// Search runs query against the passages of documentID. A blank query or
// a non-positive limit matches nothing.
func (s *BM25Searcher) Search(ctx context.Context, documentID, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []Result{}, nil
	}

	hits, err := s.store.Search(ctx, documentID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{ID: h.ID, Score: h.Score, MatchedTerms: h.MatchedTerms})
	}
	return results, nil
}

var _ Searcher = (*BM25Searcher)(nil)
