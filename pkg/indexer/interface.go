package indexer

import (
	"context"

	"github.com/Aman-CERP/studyrag/internal/store"
)

// Indexer writes passages into one retrieval source. Implementations are
// safe for concurrent use.
type Indexer interface {
	// Index stores passages. A passage ID that is already stored is
	// replaced, and an empty slice does nothing.
	Index(ctx context.Context, passages []*store.Passage) error

	// Delete removes passages by ID, ignoring IDs it never stored.
	Delete(ctx context.Context, ids []string) error

	Clear(ctx context.Context) error

	Stats() IndexStats

	// Close may be called more than once.
	Close() error
}

// IndexStats describes what one source holds.
type IndexStats struct {
	PassageCount int
	// TermCount is the keyword vocabulary size; zero for vectors.
	TermCount int
}
