// Package embed turns passages and queries into vectors for the semantic
// retrieval source.
package embed

import (
	"context"
	"math"
)

// Batch bounds for EmbedInBatches.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32
)

// StaticDimensions is the vector width of the static embedder when none
// is configured.
const StaticDimensions = 256

// Embedder maps text to fixed-width vectors. Passages are embedded in
// batches at ingest; questions one at a time at search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the width of every returned vector.
	Dimensions() int

	// ModelName identifies the vector space. Vectors from different
	// models must never be compared.
	ModelName() string

	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector returns v scaled to unit length. A zero vector is
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
