package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/studyrag/internal/store"
)

func newBM25Indexer(t *testing.T) (*BM25Indexer, store.BM25Index) {
	t.Helper()
	idx, err := store.NewBleveBM25Index("", store.DefaultBM25Config())
	require.NoError(t, err)
	bm25, err := NewBM25Indexer(WithStore(idx))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bm25.Close() })
	return bm25, idx
}

func TestNewBM25Indexer_RequiresStore(t *testing.T) {
	_, err := NewBM25Indexer()
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestBM25Indexer_Index_KeepsDocumentScope(t *testing.T) {
	// Given: passages from two documents
	bm25, idx := newBM25Indexer(t)
	ctx := context.Background()
	passages := []*store.Passage{
		{ID: "a1", DocumentID: "a", Content: "Enzymes lower activation energy."},
		{ID: "b1", DocumentID: "b", Content: "Enzymes were studied by Buchner."},
	}

	// When: indexing them
	require.NoError(t, bm25.Index(ctx, passages))

	// Then: a scoped search only sees its document
	results, err := idx.Search(ctx, "b", "enzymes", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b1", results[0].ID)
	assert.Equal(t, 2, bm25.Stats().PassageCount)
}

func TestBM25Indexer_Index_MatchesSectionHeading(t *testing.T) {
	// Given: a passage whose text never names its topic
	bm25, idx := newBM25Indexer(t)
	ctx := context.Background()
	require.NoError(t, bm25.Index(ctx, []*store.Passage{
		{ID: "c1", DocumentID: "chem", Section: "Stoichiometry", Content: "Balance both sides before converting grams to moles."},
		{ID: "c2", DocumentID: "chem", Content: "Noble gases rarely react."},
	}))

	// When: searching for the heading
	results, err := idx.Search(ctx, "chem", "stoichiometry", 10)

	// Then: the passage filed under it matches
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
}

func TestBM25Indexer_DeleteAndClear(t *testing.T) {
	bm25, _ := newBM25Indexer(t)
	ctx := context.Background()
	require.NoError(t, bm25.Index(ctx, []*store.Passage{
		{ID: "a1", DocumentID: "a", Content: "one"},
		{ID: "a2", DocumentID: "a", Content: "two"},
		{ID: "a3", DocumentID: "a", Content: "three"},
	}))

	require.NoError(t, bm25.Delete(ctx, []string{"a1"}))
	assert.Equal(t, 2, bm25.Stats().PassageCount)

	require.NoError(t, bm25.Clear(ctx))
	assert.Equal(t, 0, bm25.Stats().PassageCount)

	require.NoError(t, bm25.Clear(ctx), "clearing an empty index is a no-op")
	require.NoError(t, bm25.Close())
	require.NoError(t, bm25.Close())
}
