package searcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/studyrag/internal/store"
	"github.com/Aman-CERP/studyrag/pkg/merge"
)

// ErrNilBM25Store is returned when attempting to create a BM25Searcher without a store.
var ErrNilBM25Store = errors.New("BM25 store is required")

// ErrNilEmbedder is returned when attempting to create a VectorSearcher without an embedder.
var ErrNilEmbedder = errors.New("embedder is required")

// ErrNilVectorStore is returned when attempting to create a VectorSearcher without a store.
var ErrNilVectorStore = errors.New("vector store is required")

// ErrNoSearchers is returned when a HybridSearcher has neither source.
var ErrNoSearchers = errors.New("at least one searcher is required")

// ErrNilCatalog is returned when a HybridSearcher has no passage catalog.
var ErrNilCatalog = errors.New("passage catalog is required")

// ErrAllSourcesFailed is returned when every configured source failed.
var ErrAllSourcesFailed = errors.New("all retrieval sources failed")

// Searcher retrieves passage IDs of one document ranked by relevance.
//
// Implementations must be thread-safe for concurrent use.
type Searcher interface {
	// Search returns at most limit results for query within documentID.
	// Returns an empty slice (not nil) if nothing matches.
	Search(ctx context.Context, documentID, query string, limit int) ([]Result, error)
}

// Result is one passage hit from a single source.
type Result struct {
	// ID is the passage ID.
	ID string

	// Score is the source's relevance score. Higher is better. Scales
	// differ between sources.
	Score float64

	// MatchedTerms contains the query terms that matched (BM25 only).
	MatchedTerms []string
}

// PassageLookup resolves passage IDs to passage text and metadata.
type PassageLookup interface {
	GetPassages(ctx context.Context, ids []string) (map[string]*store.Passage, error)
}

// SourceError reports the failure of one retrieval source.
type SourceError struct {
	Source merge.Source
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
