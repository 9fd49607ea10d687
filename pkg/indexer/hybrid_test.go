package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/studyrag/internal/store"
)

// mockIndexer implements Indexer with function fields and call counters.
type mockIndexer struct {
	IndexFn  func(ctx context.Context, passages []*store.Passage) error
	DeleteFn func(ctx context.Context, ids []string) error
	ClearFn  func(ctx context.Context) error
	StatsFn  func() IndexStats
	CloseFn  func() error

	indexCalled  atomic.Int32
	deleteCalled atomic.Int32
	clearCalled  atomic.Int32
	closeCalled  atomic.Int32
}

func (m *mockIndexer) Index(ctx context.Context, passages []*store.Passage) error {
	m.indexCalled.Add(1)
	if m.IndexFn != nil {
		return m.IndexFn(ctx, passages)
	}
	return nil
}

func (m *mockIndexer) Delete(ctx context.Context, ids []string) error {
	m.deleteCalled.Add(1)
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, ids)
	}
	return nil
}

func (m *mockIndexer) Clear(ctx context.Context) error {
	m.clearCalled.Add(1)
	if m.ClearFn != nil {
		return m.ClearFn(ctx)
	}
	return nil
}

func (m *mockIndexer) Stats() IndexStats {
	if m.StatsFn != nil {
		return m.StatsFn()
	}
	return IndexStats{}
}

func (m *mockIndexer) Close() error {
	m.closeCalled.Add(1)
	if m.CloseFn != nil {
		return m.CloseFn()
	}
	return nil
}

func onePassage() []*store.Passage {
	return []*store.Passage{{ID: "p1", DocumentID: "doc", Content: "osmosis moves water"}}
}

func TestNewHybridIndexer_Modes(t *testing.T) {
	tests := []struct {
		name    string
		opts    []HybridOption
		wantErr error
	}{
		{"both", []HybridOption{WithBM25(&mockIndexer{}), WithVector(&mockIndexer{})}, nil},
		{"bm25 only", []HybridOption{WithBM25(&mockIndexer{})}, nil},
		{"vector only", []HybridOption{WithVector(&mockIndexer{})}, nil},
		{"none", nil, ErrNoIndexers},
		{"explicit nils", []HybridOption{WithBM25(nil), WithVector(nil)}, ErrNoIndexers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHybridIndexer(tt.opts...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestHybridIndexer_Index_BothCalled(t *testing.T) {
	// Given: a hybrid indexer over two mocks
	bm25, vector := &mockIndexer{}, &mockIndexer{}
	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)

	// When: indexing passages
	require.NoError(t, h.Index(context.Background(), onePassage()))

	// Then: both indexers received them
	assert.Equal(t, int32(1), bm25.indexCalled.Load())
	assert.Equal(t, int32(1), vector.indexCalled.Load())
}

func TestHybridIndexer_Index_EmptyIsNoOp(t *testing.T) {
	bm25 := &mockIndexer{}
	h, err := NewHybridIndexer(WithBM25(bm25))
	require.NoError(t, err)

	require.NoError(t, h.Index(context.Background(), nil))
	assert.Equal(t, int32(0), bm25.indexCalled.Load())
}

func TestHybridIndexer_Index_BM25ErrorFailsFast(t *testing.T) {
	bm25 := &mockIndexer{IndexFn: func(context.Context, []*store.Passage) error { return errors.New("disk full") }}
	vector := &mockIndexer{}
	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)

	err = h.Index(context.Background(), onePassage())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyword index")
	assert.Equal(t, int32(0), vector.indexCalled.Load(), "vector must not run after bm25 failed")
}

func TestHybridIndexer_Index_VectorErrorPropagates(t *testing.T) {
	vector := &mockIndexer{IndexFn: func(context.Context, []*store.Passage) error { return errors.New("embed failed") }}
	h, err := NewHybridIndexer(WithBM25(&mockIndexer{}), WithVector(vector))
	require.NoError(t, err)

	err = h.Index(context.Background(), onePassage())
	assert.ErrorContains(t, err, "vector index")
}

func TestHybridIndexer_Index_VectorErrorRollsBackKeyword(t *testing.T) {
	// Given: the vector index rejects every batch
	var rolledBack []string
	bm25 := &mockIndexer{DeleteFn: func(_ context.Context, ids []string) error {
		rolledBack = ids
		return nil
	}}
	vector := &mockIndexer{IndexFn: func(context.Context, []*store.Passage) error { return errors.New("embed failed") }}
	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)

	// When: indexing under an already cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = h.Index(ctx, onePassage())

	// Then: the keyword entries of the batch are removed again
	require.Error(t, err)
	assert.Equal(t, []string{"p1"}, rolledBack)
	assert.Equal(t, int32(0), vector.deleteCalled.Load())
}

func TestHybridIndexer_Index_RollbackFailureIsReported(t *testing.T) {
	bm25 := &mockIndexer{DeleteFn: func(context.Context, []string) error { return errors.New("bleve closed") }}
	vector := &mockIndexer{IndexFn: func(context.Context, []*store.Passage) error { return errors.New("embed failed") }}
	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)

	err = h.Index(context.Background(), onePassage())
	assert.ErrorContains(t, err, "embed failed")
	assert.ErrorContains(t, err, "keyword rollback: bleve closed")
}

func TestHybridIndexer_Delete_BestEffort(t *testing.T) {
	// Given: both indexers fail to delete
	bm25 := &mockIndexer{DeleteFn: func(context.Context, []string) error { return errors.New("bm25 down") }}
	vector := &mockIndexer{DeleteFn: func(context.Context, []string) error { return errors.New("vector down") }}
	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)

	// When: deleting
	err = h.Delete(context.Background(), []string{"p1"})

	// Then: both were attempted and both errors are reported
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bm25 down")
	assert.Contains(t, err.Error(), "vector down")
	assert.Equal(t, int32(1), vector.deleteCalled.Load())

	// And: empty input is a no-op
	require.NoError(t, h.Delete(context.Background(), nil))
	assert.Equal(t, int32(1), bm25.deleteCalled.Load())
}

func TestHybridIndexer_Clear(t *testing.T) {
	bm25, vector := &mockIndexer{}, &mockIndexer{}
	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)

	require.NoError(t, h.Clear(context.Background()))
	assert.Equal(t, int32(1), bm25.clearCalled.Load())
	assert.Equal(t, int32(1), vector.clearCalled.Load())

	bm25.ClearFn = func(context.Context) error { return errors.New("locked") }
	assert.ErrorContains(t, h.Clear(context.Background()), "keyword clear")
	assert.Equal(t, int32(1), vector.clearCalled.Load())
}

func TestHybridIndexer_Stats(t *testing.T) {
	bm25 := &mockIndexer{StatsFn: func() IndexStats { return IndexStats{PassageCount: 40, TermCount: 300} }}
	vector := &mockIndexer{StatsFn: func() IndexStats { return IndexStats{PassageCount: 42} }}

	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)
	assert.Equal(t, IndexStats{PassageCount: 42, TermCount: 300}, h.Stats())

	vo, err := NewHybridIndexer(WithVector(vector))
	require.NoError(t, err)
	assert.Equal(t, IndexStats{PassageCount: 42}, vo.Stats())
}

func TestHybridIndexer_Close_IdempotentAndJoinsErrors(t *testing.T) {
	bm25 := &mockIndexer{CloseFn: func() error { return errors.New("bm25 close") }}
	vector := &mockIndexer{CloseFn: func() error { return errors.New("vector close") }}
	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)

	err = h.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bm25 close")
	assert.Contains(t, err.Error(), "vector close")

	require.NoError(t, h.Close())
	assert.Equal(t, int32(1), bm25.closeCalled.Load())
}

func TestHybridIndexer_ConcurrentOperations(t *testing.T) {
	bm25, vector := &mockIndexer{}, &mockIndexer{}
	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = h.Index(context.Background(), onePassage())
		}()
		go func() {
			defer wg.Done()
			_ = h.Delete(context.Background(), []string{"p1"})
			_ = h.Stats()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), bm25.indexCalled.Load())
	assert.Equal(t, int32(20), vector.deleteCalled.Load())
}

func TestHybridIndexer_ImplementsIndexer(t *testing.T) {
	var _ Indexer = (*HybridIndexer)(nil)
	var _ Indexer = (*BM25Indexer)(nil)
	var _ Indexer = (*VectorIndexer)(nil)
}
