package searcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/studyrag/internal/embed"
	"github.com/Aman-CERP/studyrag/internal/store"
)

// VectorSearcher is the semantic retrieval source: it embeds the question
// and returns the nearest passages of the document.
type VectorSearcher struct {
	embedder      embed.Embedder
	store         store.VectorStore
	minSimilarity float64
}

// VectorOption configures VectorSearcher.
type VectorOption func(*VectorSearcher)

// WithSearchEmbedder sets the query embedder. Required.
func WithSearchEmbedder(e embed.Embedder) VectorOption {
	return func(s *VectorSearcher) { s.embedder = e }
}

// WithSearchVectorStore sets the vector store. Required.
func WithSearchVectorStore(vs store.VectorStore) VectorOption {
	return func(s *VectorSearcher) { s.store = vs }
}

// WithMinSimilarity drops hits scoring below min. Every passage of a
// document is someone's nearest neighbour, so without a floor an
// off-topic question still returns passages.
func WithMinSimilarity(min float64) VectorOption {
	return func(s *VectorSearcher) { s.minSimilarity = min }
}

// NewVectorSearcher creates a semantic searcher.
//
// Returns ErrNilEmbedder or ErrNilVectorStore if a dependency is missing.
func NewVectorSearcher(opts ...VectorOption) (*VectorSearcher, error) {
	s := &VectorSearcher{}
	for _, opt := range opts {
		opt(s)
	}
	if s.embedder == nil {
		return nil, ErrNilEmbedder
	}
	if s.store == nil {
		return nil, ErrNilVectorStore
	}
	return s, nil
}

// Search returns up to limit passages of documentID, best first, with
// similarity scores in [0, 1].
func (s *VectorSearcher) Search(ctx context.Context, documentID, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []Result{}, nil
	}

	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := s.store.Search(ctx, documentID, q, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		score := float64(h.Score)
		if score < s.minSimilarity {
			continue
		}
		results = append(results, Result{ID: h.ID, Score: score})
	}
	return results, nil
}

var _ Searcher = (*VectorSearcher)(nil)
