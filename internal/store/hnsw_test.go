package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(dims, hot int) []float32 {
	v := make([]float32, dims)
	v[hot] = 1
	return v
}

func newTestHNSW(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWStore_Search_NearestFirst(t *testing.T) {
	// Given: three orthogonal-ish vectors in one document
	s := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "doc", []string{"a", "b", "c"}, [][]float32{
		unitVector(4, 0),
		unitVector(4, 1),
		{0.9, 0.1, 0, 0},
	}))

	// When: querying along the first axis
	results, err := s.Search(ctx, "doc", unitVector(4, 0), 2)
	require.NoError(t, err)

	// Then: the exact match ranks first with score ~1
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, "c", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHNSWStore_Search_ScoreIsCosineSimilarity(t *testing.T) {
	// Given: a parallel, an orthogonal and an opposite vector
	s := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "doc", []string{"same", "orthogonal", "opposite"}, [][]float32{
		unitVector(4, 0),
		unitVector(4, 1),
		{-1, 0, 0, 0},
	}))

	// When
	results, err := s.Search(ctx, "doc", unitVector(4, 0), 3)
	require.NoError(t, err)

	// Then: scores are 1, 0 and -1
	require.Len(t, results, 3)
	scores := map[string]float32{}
	for _, r := range results {
		scores[r.ID] = r.Score
	}
	assert.InDelta(t, 1.0, scores["same"], 1e-5)
	assert.InDelta(t, 0.0, scores["orthogonal"], 1e-5)
	assert.InDelta(t, -1.0, scores["opposite"], 1e-5)
}

func TestHNSWStore_Search_FiltersByDocument(t *testing.T) {
	// Given: the nearest vectors belong to another document
	s := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "other", []string{"o1", "o2", "o3"}, [][]float32{
		unitVector(4, 0), {0.99, 0.01, 0, 0}, {0.98, 0.02, 0, 0},
	}))
	require.NoError(t, s.Add(ctx, "mine", []string{"m1"}, [][]float32{unitVector(4, 3)}))

	// When: searching the "mine" scope with a query close to "other"
	results, err := s.Search(ctx, "mine", unitVector(4, 0), 3)
	require.NoError(t, err)

	// Then: only the in-scope vector comes back
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestHNSWStore_Search_EmptyAndDimensionMismatch(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()

	results, err := s.Search(ctx, "doc", unitVector(4, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = s.Search(ctx, "doc", []float32{1, 0}, 5)
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	err = s.Add(ctx, "doc", []string{"x"}, [][]float32{{1, 2, 3}})
	assert.ErrorAs(t, err, &dimErr)

	err = s.Add(ctx, "doc", []string{"x", "y"}, [][]float32{unitVector(4, 0)})
	assert.Error(t, err)
}

func TestHNSWStore_DeleteAndReplace(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "doc", []string{"a", "b"}, [][]float32{unitVector(4, 0), unitVector(4, 1)}))

	// When: deleting one and re-adding another under a new vector
	require.NoError(t, s.Delete(ctx, []string{"a"}))
	require.NoError(t, s.Add(ctx, "doc", []string{"b"}, [][]float32{unitVector(4, 2)}))

	// Then: counts and membership reflect the live mappings
	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, []string{"b"}, s.AllIDs())
	assert.Equal(t, 2, s.Orphans())
	assert.Equal(t, 1, s.DocumentCount("doc"))

	results, err := s.Search(ctx, "doc", unitVector(4, 2), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestHNSWStore_SaveLoad_PreservesScopes(t *testing.T) {
	// Given: a saved store with two documents
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	ctx := context.Background()

	s := newTestHNSW(t)
	require.NoError(t, s.Add(ctx, "d1", []string{"a"}, [][]float32{unitVector(4, 0)}))
	require.NoError(t, s.Add(ctx, "d2", []string{"b"}, [][]float32{{0.9, 0.1, 0, 0}}))
	require.NoError(t, s.Save(path))

	dims, err := ReadHNSWStoreDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)

	// When: loading into a fresh store
	loaded := newTestHNSW(t)
	require.NoError(t, loaded.Load(path))

	// Then: scoped search still filters by document
	results, err := loaded.Search(ctx, "d2", unitVector(4, 0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestHNSWStore_Load_RejectsOtherDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	s := newTestHNSW(t)
	require.NoError(t, s.Add(context.Background(), "d", []string{"a"}, [][]float32{unitVector(4, 0)}))
	require.NoError(t, s.Save(path))

	wider, err := NewHNSWStore(DefaultVectorStoreConfig(8))
	require.NoError(t, err)
	defer func() { _ = wider.Close() }()

	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, wider.Load(path), &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 8, dimErr.Got)
}

func TestHNSWStore_DocumentCount(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "bio", []string{"b1", "b2"}, [][]float32{unitVector(4, 0), unitVector(4, 1)}))
	require.NoError(t, s.Add(ctx, "chem", []string{"c1"}, [][]float32{unitVector(4, 2)}))

	// Moving a passage to another document updates both counts
	require.NoError(t, s.Add(ctx, "chem", []string{"b2"}, [][]float32{unitVector(4, 3)}))

	assert.Equal(t, 1, s.DocumentCount("bio"))
	assert.Equal(t, 2, s.DocumentCount("chem"))
	assert.Equal(t, 0, s.DocumentCount("none"))

	results, err := s.Search(ctx, "", unitVector(4, 3), 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "b2", results[0].ID)
}

func TestNewHNSWStore_InvalidDimensions(t *testing.T) {
	_, err := NewHNSWStore(VectorStoreConfig{})
	assert.Error(t, err)
}

func TestReadHNSWStoreDimensions_Missing(t *testing.T) {
	dims, err := ReadHNSWStoreDimensions(filepath.Join(t.TempDir(), "none.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dims)
}

func TestHNSWStore_ClosedStore(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Search(context.Background(), "", unitVector(4, 0), 1)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Count())
	assert.Nil(t, s.AllIDs())
}
