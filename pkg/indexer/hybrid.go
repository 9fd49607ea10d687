package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Aman-CERP/studyrag/internal/store"
)

// ErrNoIndexers is returned by NewHybridIndexer when both parts are nil.
var ErrNoIndexers = errors.New("at least one indexer is required")

// HybridIndexer writes passages to the keyword and the vector index so a
// document is searchable by both sources. Either part may be nil.
//
// A batch is only kept when both parts accept it: when the vector index
// rejects a batch, the keyword entries written for it are removed again.
// HybridIndexer is safe for concurrent use.
type HybridIndexer struct {
	mu     sync.RWMutex
	parts  []part
	closed bool
}

// part is one named member index.
type part struct {
	name string
	idx  Indexer
}

// HybridOption configures a HybridIndexer.
type HybridOption func(*hybridParts)

type hybridParts struct {
	keyword, vector Indexer
}

// WithBM25 sets the keyword index.
func WithBM25(idx Indexer) HybridOption {
	return func(p *hybridParts) { p.keyword = idx }
}

// WithVector sets the vector index.
func WithVector(idx Indexer) HybridOption {
	return func(p *hybridParts) { p.vector = idx }
}

// NewHybridIndexer creates a hybrid indexer. The keyword part is always
// written before the vector part.
//
// Returns ErrNoIndexers if both parts are nil.
func NewHybridIndexer(opts ...HybridOption) (*HybridIndexer, error) {
	var p hybridParts
	for _, opt := range opts {
		opt(&p)
	}

	h := &HybridIndexer{}
	if p.keyword != nil {
		h.parts = append(h.parts, part{name: "keyword", idx: p.keyword})
	}
	if p.vector != nil {
		h.parts = append(h.parts, part{name: "vector", idx: p.vector})
	}
	if len(h.parts) == 0 {
		return nil, ErrNoIndexers
	}
	return h, nil
}

// Index writes passages to every part in order. When a later part fails,
// the batch is deleted from the parts that already took it.
func (h *HybridIndexer) Index(ctx context.Context, passages []*store.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, p := range h.parts {
		err := p.idx.Index(ctx, passages)
		if err == nil {
			continue
		}
		err = fmt.Errorf("%s index: %w", p.name, err)
		if i > 0 {
			if rbErr := h.rollback(h.parts[:i], passageIDs(passages)); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		}
		return err
	}
	return nil
}

// rollback removes ids from parts. It runs on a fresh context so a
// cancelled ingest still leaves the indexes aligned.
func (h *HybridIndexer) rollback(parts []part, ids []string) error {
	var errs []error
	for _, p := range parts {
		if err := p.idx.Delete(context.Background(), ids); err != nil {
			errs = append(errs, fmt.Errorf("%s rollback: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

func passageIDs(passages []*store.Passage) []string {
	ids := make([]string, len(passages))
	for i, p := range passages {
		ids[i] = p.ID
	}
	return ids
}

// Delete removes passages from every part, trying all of them. An entry
// left behind in one part has no catalog passage and never reaches a
// search result.
func (h *HybridIndexer) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, p := range h.parts {
		if err := p.idx.Delete(ctx, ids); err != nil {
			errs = append(errs, fmt.Errorf("%s delete: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

// Clear empties every part, stopping at the first failure.
func (h *HybridIndexer) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, p := range h.parts {
		if err := p.idx.Clear(ctx); err != nil {
			return fmt.Errorf("%s clear: %w", p.name, err)
		}
	}
	return nil
}

// Stats reports the larger passage count of the parts (they are equal
// when consistent) and the keyword term count.
func (h *HybridIndexer) Stats() IndexStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var stats IndexStats
	for _, p := range h.parts {
		s := p.idx.Stats()
		stats.PassageCount = max(stats.PassageCount, s.PassageCount)
		if p.name == "keyword" {
			stats.TermCount = s.TermCount
		}
	}
	return stats
}

// Close closes every part once and joins their errors.
func (h *HybridIndexer) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	for _, p := range h.parts {
		if err := p.idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

var _ Indexer = (*HybridIndexer)(nil)
