package search

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/studyrag/internal/chunk"
	"github.com/Aman-CERP/studyrag/internal/config"
	"github.com/Aman-CERP/studyrag/internal/embed"
	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/store"
	"github.com/Aman-CERP/studyrag/internal/telemetry"
	"github.com/Aman-CERP/studyrag/pkg/indexer"
	"github.com/Aman-CERP/studyrag/pkg/merge"
	"github.com/Aman-CERP/studyrag/pkg/searcher"
)

// Sources selects which retrieval sources a search uses.
type Sources string

const (
	SourcesHybrid  Sources = ""
	SourcesKeyword Sources = "keyword"
	SourcesVector  Sources = "vector"
)

// OpenOptions adjusts an engine opened from configuration.
type OpenOptions struct {
	// Sources restricts searching to one source. Ingestion always writes both.
	Sources Sources

	// Metrics receives Prometheus metrics. Nil disables them.
	Metrics *telemetry.Metrics

	Logger *slog.Logger
}

// closerStack closes what Open has built so far when a later step fails.
type closerStack []func() error

func (s *closerStack) push(fn func() error) { *s = append(*s, fn) }

func (s closerStack) closeAll() {
	for i := len(s) - 1; i >= 0; i-- {
		_ = s[i]()
	}
}

// Open builds an engine over the data directory in cfg: it locks the
// directory, opens the catalog, the keyword index and the vector graph,
// and wires the indexers and the hybrid searcher.
func Open(cfg *config.Config, opts OpenOptions) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dataDir := cfg.Paths.DataDir
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, studyerrors.New(studyerrors.ErrCodeFilePermission, "cannot create data directory", err).
			WithDetail("data_dir", dataDir)
	}

	var cleanup closerStack
	ok := false
	defer func() {
		if !ok {
			cleanup.closeAll()
		}
	}()

	lock, err := store.LockDataDir(dataDir)
	if err != nil {
		if errors.Is(err, store.ErrDataDirLocked) {
			return nil, studyerrors.New(studyerrors.ErrCodeDataDirLocked, "data directory is in use by another studyrag process", err).
				WithDetail("data_dir", dataDir).
				WithSuggestion("Stop `studyrag serve` or point --config at another data_dir")
		}
		return nil, studyerrors.IOError("cannot lock data directory", err)
	}
	cleanup.push(lock.Unlock)

	catalog, err := store.NewSQLitePassageStore(store.CatalogPath(dataDir))
	if err != nil {
		return nil, studyerrors.New(studyerrors.ErrCodeCorruptIndex, "cannot open the document catalog", err)
	}
	cleanup.push(catalog.Close)

	keywordBase := store.KeywordIndexBase(dataDir)
	backend := cfg.Search.KeywordBackend
	if detected := store.DetectBM25Backend(keywordBase); detected != "" && string(detected) != backend {
		logger.Warn("keyword_backend_mismatch",
			slog.String("configured", backend),
			slog.String("using", string(detected)))
		backend = string(detected)
	}
	bm25, err := store.NewBM25IndexWithBackend(keywordBase, store.DefaultBM25Config(), backend)
	if err != nil {
		return nil, studyerrors.New(studyerrors.ErrCodeCorruptIndex, "cannot open the keyword index", err)
	}
	cleanup.push(bm25.Close)

	dims := cfg.Embeddings.Dimensions
	vectorPath := store.VectorIndexPath(dataDir)
	vectors, err := openVectorStore(vectorPath, dims)
	if err != nil {
		return nil, err
	}
	cleanup.push(vectors.Close)

	embedder, err := embed.NewEmbedder(embed.ProviderStatic, dims, cfg.Embeddings.CacheSize)
	if err != nil {
		return nil, studyerrors.ConfigError("cannot create embedder", err)
	}

	keywordIndexer, err := indexer.NewBM25Indexer(indexer.WithStore(bm25))
	if err != nil {
		return nil, studyerrors.InternalError("cannot create keyword indexer", err)
	}
	vectorIndexer, err := indexer.NewVectorIndexer(
		indexer.WithEmbedder(embedder),
		indexer.WithVectorStore(vectors),
		indexer.WithBatchSize(cfg.Embeddings.BatchSize),
		indexer.WithPersistPath(vectorPath),
		indexer.WithProgress(func(done, total int) {
			logger.Debug("embedding_progress", slog.Int("done", done), slog.Int("total", total))
		}),
	)
	if err != nil {
		return nil, studyerrors.InternalError("cannot create vector indexer", err)
	}
	hybridIndexer, err := indexer.NewHybridIndexer(
		indexer.WithBM25(keywordIndexer),
		indexer.WithVector(vectorIndexer),
	)
	if err != nil {
		return nil, studyerrors.InternalError("cannot create indexer", err)
	}

	merger, err := NewMerger(cfg.Search.DuplicatePolicy, cfg.Search.Normalization)
	if err != nil {
		return nil, err
	}

	searchOpts := []searcher.HybridOption{
		searcher.WithCatalog(catalog),
		searcher.WithMerger(merger),
		searcher.WithStrict(cfg.Search.Strict),
		searcher.WithSourceTimeout(cfg.SourceTimeoutDuration()),
		searcher.WithOverFetch(cfg.Search.OverFetch),
		searcher.WithLogger(logger),
	}
	if opts.Sources != SourcesVector {
		bm25Searcher, err := searcher.NewBM25Searcher(searcher.WithBM25Store(bm25))
		if err != nil {
			return nil, studyerrors.InternalError("cannot create keyword searcher", err)
		}
		searchOpts = append(searchOpts, searcher.WithKeywordSearcher(bm25Searcher))
	}
	if opts.Sources != SourcesKeyword {
		vectorSearcher, err := searcher.NewVectorSearcher(
			searcher.WithSearchEmbedder(embedder),
			searcher.WithSearchVectorStore(vectors),
			searcher.WithMinSimilarity(cfg.Search.MinSimilarity),
		)
		if err != nil {
			return nil, studyerrors.InternalError("cannot create vector searcher", err)
		}
		searchOpts = append(searchOpts, searcher.WithVectorSearcher(vectorSearcher))
	}
	hybridSearcher, err := searcher.NewHybridSearcher(searchOpts...)
	if err != nil {
		return nil, studyerrors.InternalError("cannot create searcher", err)
	}

	chunker := chunk.NewPassageChunkerWithOptions(chunk.Options{
		MaxTokens:     cfg.Chunking.MaxTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	})

	engine, err := NewEngine(catalog, hybridIndexer, hybridSearcher, chunker,
		EngineConfig{
			DefaultLimit:    cfg.Search.DefaultLimit,
			MaxLimit:        cfg.Search.MaxLimit,
			MaxContextChars: cfg.Search.MaxContextChars,
			MaxQueryLength:  cfg.Search.MaxQueryLength,
		},
		WithMetrics(opts.Metrics),
		WithLogger(logger),
		WithOnClose(embedder.Close),
		WithOnClose(lock.Unlock),
		withInfo(dataDir, backend),
	)
	if err != nil {
		return nil, studyerrors.InternalError("cannot create engine", err)
	}

	ok = true
	logger.Debug("engine_opened",
		slog.String("data_dir", dataDir),
		slog.String("keyword_backend", backend),
		slog.String("policy", string(merger.Policy())),
		slog.String("normalization", merger.Normalizer().Name()),
		slog.String("sources", sourcesName(opts.Sources)))
	return engine, nil
}

// NewMerger builds a merger from configuration names.
func NewMerger(policy, normalization string) (*merge.Merger, error) {
	p, err := merge.ParseDuplicatePolicy(policy)
	if err != nil {
		return nil, studyerrors.ConfigError(err.Error(), err)
	}
	n, err := merge.ParseNormalization(normalization)
	if err != nil {
		return nil, studyerrors.ConfigError(err.Error(), err)
	}
	m, err := merge.New(merge.WithDuplicatePolicy(p), merge.WithNormalizer(n))
	if err != nil {
		return nil, studyerrors.ConfigError("invalid merge settings", err)
	}
	return m, nil
}

// openVectorStore creates the HNSW store and loads an existing graph.
// A graph built with other dimensions is rejected.
func openVectorStore(path string, dims int) (*store.HNSWStore, error) {
	if _, err := os.Stat(path); err == nil {
		stored, err := store.ReadHNSWStoreDimensions(path)
		if err == nil && stored != 0 && stored != dims {
			mismatch := store.ErrDimensionMismatch{Expected: stored, Got: dims}
			return nil, studyerrors.New(studyerrors.ErrCodeDimensionMismatch, mismatch.Error(), mismatch).
				WithSuggestion(fmt.Sprintf("Set embeddings.dimensions to %d or re-index every document", stored))
		}
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return nil, studyerrors.InternalError("cannot create vector store", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := vectors.Load(path); err != nil {
			_ = vectors.Close()
			return nil, studyerrors.New(studyerrors.ErrCodeCorruptIndex, "cannot load the vector index", err)
		}
	}
	return vectors, nil
}

func sourcesName(s Sources) string {
	if s == SourcesHybrid {
		return "hybrid"
	}
	return string(s)
}
