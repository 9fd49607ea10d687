package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ProviderType represents an embedding provider.
type ProviderType string

// ProviderStatic uses hash-based embeddings. It is the only local provider;
// hosted embedding APIs are out of scope.
const ProviderStatic ProviderType = "static"

// NewEmbedder creates the embedder for provider wrapped in a query cache.
// An empty provider selects ProviderStatic.
func NewEmbedder(provider ProviderType, dimensions, cacheSize int) (Embedder, error) {
	var inner Embedder
	switch ProviderType(strings.ToLower(string(provider))) {
	case ProviderStatic, "":
		inner = NewStaticEmbedder(dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: static)", provider)
	}

	slog.Debug("embedder_created",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()),
		slog.Int("cache_size", cacheSize))

	return NewCachedEmbedder(inner, cacheSize), nil
}

// EmbedInBatches embeds texts in slices of batchSize (DefaultBatchSize if
// <= 0, capped at MaxBatchSize). onBatch, if non-nil, receives the number
// of texts embedded so far after each batch.
func EmbedInBatches(ctx context.Context, e Embedder, texts []string, batchSize int, onBatch func(done int)) ([][]float32, error) {
	if batchSize < MinBatchSize {
		batchSize = DefaultBatchSize
	}
	batchSize = min(batchSize, MaxBatchSize)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+batchSize, len(texts))
		vecs, err := e.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
		}
		out = append(out, vecs...)

		if onBatch != nil {
			onBatch(end)
		}
	}
	return out, nil
}
