package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Aman-CERP/studyrag/internal/embed"
	"github.com/Aman-CERP/studyrag/internal/store"
)

var (
	ErrNilEmbedder    = errors.New("embedder is required")
	ErrNilVectorStore = errors.New("vector store is required")
)

// VectorIndexer embeds passage text and files the vectors under each
// passage's document, so similarity search can be scoped to one document.
// When a persist path is set the graph is saved after every write.
type VectorIndexer struct {
	embedder    embed.Embedder
	store       store.VectorStore
	batchSize   int
	persistPath string
	progress    func(done, total int)

	mu     sync.RWMutex
	closed bool
}

type VectorOption func(*VectorIndexer)

// WithEmbedder is required.
func WithEmbedder(e embed.Embedder) VectorOption {
	return func(v *VectorIndexer) { v.embedder = e }
}

// WithVectorStore is required.
func WithVectorStore(s store.VectorStore) VectorOption {
	return func(v *VectorIndexer) { v.store = s }
}

// WithBatchSize sets how many passages go to the embedder per call.
func WithBatchSize(n int) VectorOption {
	return func(v *VectorIndexer) { v.batchSize = n }
}

func WithPersistPath(path string) VectorOption {
	return func(v *VectorIndexer) { v.persistPath = path }
}

// WithProgress receives the number of passages embedded so far after
// every batch.
func WithProgress(fn func(done, total int)) VectorOption {
	return func(v *VectorIndexer) { v.progress = fn }
}

func NewVectorIndexer(opts ...VectorOption) (*VectorIndexer, error) {
	v := &VectorIndexer{batchSize: embed.DefaultBatchSize}
	for _, opt := range opts {
		opt(v)
	}
	switch {
	case v.embedder == nil:
		return nil, ErrNilEmbedder
	case v.store == nil:
		return nil, ErrNilVectorStore
	}
	return v, nil
}

// documentBatch holds one document's passages in ingest order.
type documentBatch struct {
	documentID string
	ids        []string
	vectors    [][]float32
}

func groupByDocument(passages []*store.Passage, vectors [][]float32) []*documentBatch {
	var batches []*documentBatch
	byDoc := make(map[string]*documentBatch)
	for i, p := range passages {
		b, ok := byDoc[p.DocumentID]
		if !ok {
			b = &documentBatch{documentID: p.DocumentID}
			byDoc[p.DocumentID] = b
			batches = append(batches, b)
		}
		b.ids = append(b.ids, p.ID)
		b.vectors = append(b.vectors, vectors[i])
	}
	return batches
}

// Index embeds passages outside the lock, then adds them per document.
func (v *VectorIndexer) Index(ctx context.Context, passages []*store.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}
	var onBatch func(int)
	if v.progress != nil {
		onBatch = func(done int) { v.progress(done, len(texts)) }
	}
	vectors, err := embed.EmbedInBatches(ctx, v.embedder, texts, v.batchSize, onBatch)
	if err != nil {
		return fmt.Errorf("embed %d passages: %w", len(texts), err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, b := range groupByDocument(passages, vectors) {
		if err := v.store.Add(ctx, b.documentID, b.ids, b.vectors); err != nil {
			return fmt.Errorf("add vectors for %s: %w", b.documentID, err)
		}
	}
	return v.save()
}

// save writes the graph to persistPath, if any. Caller holds v.mu.
func (v *VectorIndexer) save() error {
	if v.persistPath == "" {
		return nil
	}
	if err := v.store.Save(v.persistPath); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	return nil
}

// Delete removes vectors by passage ID; unknown IDs are ignored.
func (v *VectorIndexer) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return v.save()
}

func (v *VectorIndexer) Clear(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	ids := v.store.AllIDs()
	if len(ids) == 0 {
		return nil
	}
	if err := v.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("clear vectors: %w", err)
	}
	return v.save()
}

// Stats counts stored vectors. Vectors have no terms.
func (v *VectorIndexer) Stats() IndexStats {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return IndexStats{PassageCount: v.store.Count()}
}

// Close closes the store once.
func (v *VectorIndexer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	return v.store.Close()
}

var _ Indexer = (*VectorIndexer)(nil)
