package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/studyrag/internal/config"
	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/pkg/merge"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Embeddings.Dimensions = 32
	cfg.Chunking.MaxTokens = 64
	cfg.Chunking.OverlapTokens = 0
	return cfg
}

func TestOpen_PersistsAcrossRestarts(t *testing.T) {
	// Given: a document ingested through one engine
	cfg := testConfig(t)
	ctx := context.Background()

	e, err := Open(cfg, OpenOptions{})
	require.NoError(t, err)
	_, err = e.Ingest(ctx, IngestRequest{DocumentID: "bio", Content: []byte(biologyNotes)})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// When: reopening the same data directory
	e, err = Open(cfg, OpenOptions{})
	require.NoError(t, err)
	defer e.Close()

	// Then: the document is still searchable from both sources
	resp, err := e.Search(ctx, SearchRequest{DocumentID: "bio", Query: "chloroplasts glucose", Limit: -1})
	require.NoError(t, err)
	assert.False(t, resp.Degraded)
	require.NotEmpty(t, resp.Results)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 3, stats.Passages)
	assert.Equal(t, cfg.Paths.DataDir, stats.DataDir)
	assert.Equal(t, "bleve", stats.KeywordIndex)
}

func TestOpen_DataDirLocked(t *testing.T) {
	cfg := testConfig(t)

	first, err := Open(cfg, OpenOptions{})
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(cfg, OpenOptions{})

	require.Error(t, err)
	assert.Equal(t, studyerrors.ErrCodeDataDirLocked, studyerrors.GetCode(err))
}

func TestOpen_ReleasesLockOnClose(t *testing.T) {
	cfg := testConfig(t)

	first, err := Open(cfg, OpenOptions{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(cfg, OpenOptions{})
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestOpen_DimensionMismatch(t *testing.T) {
	// Given: a vector index built with 32 dimensions
	cfg := testConfig(t)
	e, err := Open(cfg, OpenOptions{})
	require.NoError(t, err)
	_, err = e.Ingest(context.Background(), IngestRequest{DocumentID: "bio", Content: []byte(biologyNotes)})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// When: reopening with another dimension
	cfg.Embeddings.Dimensions = 48
	_, err = Open(cfg, OpenOptions{})

	// Then
	require.Error(t, err)
	assert.Equal(t, studyerrors.ErrCodeDimensionMismatch, studyerrors.GetCode(err))

	// And the failed open released the lock
	cfg.Embeddings.Dimensions = 32
	e, err = Open(cfg, OpenOptions{})
	require.NoError(t, err)
	assert.NoError(t, e.Close())
}

func TestOpen_KeepsDetectedKeywordBackend(t *testing.T) {
	// Given: an index created with the sqlite backend
	cfg := testConfig(t)
	cfg.Search.KeywordBackend = "sqlite"
	e, err := Open(cfg, OpenOptions{})
	require.NoError(t, err)
	_, err = e.Ingest(context.Background(), IngestRequest{DocumentID: "bio", Content: []byte(biologyNotes)})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// When: the configuration now asks for bleve
	cfg.Search.KeywordBackend = "bleve"
	e, err = Open(cfg, OpenOptions{Sources: SourcesKeyword})
	require.NoError(t, err)
	defer e.Close()

	// Then: the existing sqlite index is used
	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", stats.KeywordIndex)

	resp, err := e.Search(context.Background(), SearchRequest{DocumentID: "bio", Query: "enzymes"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, string(merge.SourceKeyword), r.Source)
	}
}

func TestOpen_InvalidMergeSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.DuplicatePolicy = "first_wins"

	_, err := Open(cfg, OpenOptions{})

	require.Error(t, err)
	assert.Equal(t, studyerrors.ErrCodeConfigInvalid, studyerrors.GetCode(err))

	// The lock is released after the failure
	cfg.Search.DuplicatePolicy = string(merge.MaxScore)
	e, err := Open(cfg, OpenOptions{})
	require.NoError(t, err)
	assert.NoError(t, e.Close())
}

func TestNewMerger(t *testing.T) {
	m, err := NewMerger("max_score", "rank")
	require.NoError(t, err)
	assert.Equal(t, merge.MaxScore, m.Policy())
	assert.Equal(t, merge.NormalizeRank, m.Normalizer().Name())

	_, err = NewMerger("vector_priority", "zscore")
	assert.Equal(t, studyerrors.ErrCodeConfigInvalid, studyerrors.GetCode(err))
}
