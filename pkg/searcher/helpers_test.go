package searcher

import (
	"context"
	"sync/atomic"

	"github.com/Aman-CERP/studyrag/internal/store"
)

// mockSearcher implements Searcher with a function field.
type mockSearcher struct {
	SearchFn func(ctx context.Context, documentID, query string, limit int) ([]Result, error)

	calls     atomic.Int32
	lastLimit atomic.Int32
}

func (m *mockSearcher) Search(ctx context.Context, documentID, query string, limit int) ([]Result, error) {
	m.calls.Add(1)
	m.lastLimit.Store(int32(limit))
	if m.SearchFn != nil {
		return m.SearchFn(ctx, documentID, query, limit)
	}
	return []Result{}, nil
}

func returning(results ...Result) *mockSearcher {
	return &mockSearcher{SearchFn: func(context.Context, string, string, int) ([]Result, error) {
		return results, nil
	}}
}

func failing(err error) *mockSearcher {
	return &mockSearcher{SearchFn: func(context.Context, string, string, int) ([]Result, error) {
		return nil, err
	}}
}

// mapCatalog is an in-memory PassageLookup.
type mapCatalog struct {
	passages map[string]*store.Passage
	err      error
}

func newMapCatalog(passages ...*store.Passage) *mapCatalog {
	c := &mapCatalog{passages: make(map[string]*store.Passage)}
	for _, p := range passages {
		c.passages[p.ID] = p
	}
	return c
}

func (c *mapCatalog) GetPassages(_ context.Context, ids []string) (map[string]*store.Passage, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]*store.Passage, len(ids))
	for _, id := range ids {
		if p, ok := c.passages[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
