// Package searcher retrieves passages of one study document from the
// keyword and vector sources and merges them into a single ranked list.
//
//   - [BM25Searcher]: keyword search over a store.BM25Index
//   - [VectorSearcher]: semantic search over embeddings
//   - [HybridSearcher]: both sources fetched concurrently, then merged
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                     HybridSearcher                        │
//	│  ┌───────────────┐   errgroup   ┌────────────────┐        │
//	│  │ VectorSearcher│──────────────│  BM25Searcher  │        │
//	│  └───────┬───────┘              └───────┬────────┘        │
//	│          └──── PassageLookup (hydrate) ─┘                 │
//	│                       │                                   │
//	│                 merge.Merger                              │
//	└──────────────────────────────────────────────────────────┘
//
// # Usage
//
//	bm25, _ := searcher.NewBM25Searcher(searcher.WithBM25Store(bm25Index))
//	vector, _ := searcher.NewVectorSearcher(
//	    searcher.WithSearchEmbedder(embedder),
//	    searcher.WithSearchVectorStore(vectorStore),
//	)
//	hybrid, _ := searcher.NewHybridSearcher(
//	    searcher.WithKeywordSearcher(bm25),
//	    searcher.WithVectorSearcher(vector),
//	    searcher.WithCatalog(catalog),
//	    searcher.WithSourceTimeout(5*time.Second),
//	)
//
//	out, err := hybrid.Search(ctx, "biology-101", "what do mitochondria do", 5)
//
// # Degradation
//
// When one source fails the search continues with the other and
// [Outcome.Degraded] is set. [WithStrict] turns any source failure into an
// error. When every source fails the error matches [ErrAllSourcesFailed].
//
// # Thread Safety
//
// All searchers are safe for concurrent use.
package searcher
