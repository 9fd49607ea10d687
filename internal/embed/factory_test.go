package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_StaticIsCached(t *testing.T) {
	for _, provider := range []ProviderType{"", ProviderStatic, "STATIC"} {
		e, err := NewEmbedder(provider, 128, 50)
		require.NoError(t, err)

		cached, ok := e.(*CachedEmbedder)
		require.True(t, ok)
		assert.Equal(t, 128, cached.Dimensions())
		assert.IsType(t, &StaticEmbedder{}, cached.Inner())
	}
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder("remote", 128, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
}

func TestEmbedInBatches_SplitsAndReportsProgress(t *testing.T) {
	// Given: five texts and a batch size of two
	mock := newMockEmbedder(4)
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	var progress []int

	// When: embedding in batches
	vecs, err := EmbedInBatches(context.Background(), mock, texts, 2, func(done int) {
		progress = append(progress, done)
	})

	// Then: three batches ran in order
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, []int{2, 2, 1}, mock.batchSizes)
	assert.Equal(t, []int{2, 4, 5}, progress)
	assert.Equal(t, mock.vectorFor("dddd"), vecs[3])
}

func TestEmbedInBatches_DefaultBatchSize(t *testing.T) {
	mock := newMockEmbedder(4)
	texts := make([]string, DefaultBatchSize+1)

	_, err := EmbedInBatches(context.Background(), mock, texts, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{DefaultBatchSize, 1}, mock.batchSizes)
}

func TestEmbedInBatches_Errors(t *testing.T) {
	mock := newMockEmbedder(4)
	mock.failBatch = true
	_, err := EmbedInBatches(context.Background(), mock, []string{"x"}, 4, nil)
	assert.ErrorContains(t, err, "backend down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = EmbedInBatches(ctx, newMockEmbedder(4), []string{"x"}, 4, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
