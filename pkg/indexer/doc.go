// Package indexer writes study-document passages into the retrieval indexes.
//
// Each retrieval source has its own indexer behind the [Indexer] interface:
//
//	┌─────────────────┐
//	│  HybridIndexer  │  (fans out writes)
//	└────────┬────────┘
//	    ┌────┴────┐
//	┌───▼───┐ ┌───▼───┐
//	│ BM25  │ │Vector │
//	└───────┘ └───────┘
//
// # Usage
//
//	kw, _ := store.NewBM25IndexWithBackend(base, store.DefaultBM25Config(), "bleve")
//	bm25, err := indexer.NewBM25Indexer(indexer.WithStore(kw))
//	if err != nil {
//	    return err
//	}
//	vec, err := indexer.NewVectorIndexer(
//	    indexer.WithEmbedder(embedder),
//	    indexer.WithVectorStore(vectors),
//	)
//	if err != nil {
//	    return err
//	}
//	h, err := indexer.NewHybridIndexer(indexer.WithBM25(bm25), indexer.WithVector(vec))
//	defer h.Close()
//
//	err = h.Index(ctx, passages)
//
// # Thread Safety
//
// All Indexer implementations are safe for concurrent use.
package indexer
