package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Aman-CERP/studyrag/internal/chunk"
	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/store"
	"github.com/Aman-CERP/studyrag/internal/telemetry"
	"github.com/Aman-CERP/studyrag/pkg/indexer"
	"github.com/Aman-CERP/studyrag/pkg/merge"
	"github.com/Aman-CERP/studyrag/pkg/searcher"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Retriever runs a document-scoped hybrid search.
type Retriever interface {
	Search(ctx context.Context, documentID, query string, limit int) (*searcher.Outcome, error)
}

var _ Retriever = (*searcher.HybridSearcher)(nil)

// EngineConfig holds request limits.
type EngineConfig struct {
	DefaultLimit    int
	MaxLimit        int
	MaxContextChars int
	MaxQueryLength  int

	// IndexBatchSize is how many passages are indexed per progress step.
	IndexBatchSize int
}

// DefaultEngineConfig returns the defaults used by `studyrag init`.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:    5,
		MaxLimit:        50,
		MaxContextChars: 6000,
		MaxQueryLength:  1000,
		IndexBatchSize:  64,
	}
}

// Engine ingests study documents and answers document-scoped searches.
//
// Ingestion and deletion are serialized; searches run concurrently.
type Engine struct {
	catalog   store.PassageStore
	indexer   indexer.Indexer
	retriever Retriever
	chunker   chunk.Chunker
	config    EngineConfig

	metrics *telemetry.Metrics
	queries *telemetry.QueryMetrics
	logger  *slog.Logger
	info    EngineStats
	onClose []func() error

	mu     sync.RWMutex
	closed bool
}

var _ StudyEngine = (*Engine)(nil)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithQueryMetrics sets the in-memory query summary.
func WithQueryMetrics(q *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.queries = q
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithOnClose registers fn to run after the stores are closed.
func WithOnClose(fn func() error) EngineOption {
	return func(e *Engine) {
		e.onClose = append(e.onClose, fn)
	}
}

// withInfo records where the engine's data lives, for Stats.
func withInfo(dataDir, keywordIndex string) EngineOption {
	return func(e *Engine) {
		e.info.DataDir = dataDir
		e.info.KeywordIndex = keywordIndex
	}
}

// NewEngine creates an engine from its parts.
// Returns an error wrapping ErrNilDependency if any part is nil.
func NewEngine(
	catalog store.PassageStore,
	idx indexer.Indexer,
	retriever Retriever,
	chunker chunk.Chunker,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: passage catalog is required", ErrNilDependency)
	}
	if idx == nil {
		return nil, fmt.Errorf("%w: indexer is required", ErrNilDependency)
	}
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever is required", ErrNilDependency)
	}
	if chunker == nil {
		return nil, fmt.Errorf("%w: chunker is required", ErrNilDependency)
	}

	defaults := DefaultEngineConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit < config.DefaultLimit {
		config.MaxLimit = max(defaults.MaxLimit, config.DefaultLimit)
	}
	if config.IndexBatchSize <= 0 {
		config.IndexBatchSize = defaults.IndexBatchSize
	}

	e := &Engine{
		catalog:   catalog,
		indexer:   idx,
		retriever: retriever,
		chunker:   chunker,
		config:    config,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.queries == nil {
		e.queries = telemetry.NewQueryMetrics(0, 0)
	}
	return e, nil
}

// Ingest chunks a document and writes it to both indexes and the catalog,
// replacing any earlier version with the same ID. Unchanged content is
// skipped unless req.Force is set.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()

	docID := req.DocumentID
	if docID == "" {
		docID = DeriveDocumentID(req.Title, req.SourcePath)
	}
	if err := ValidateDocumentID(docID); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(req.Content)) == 0 {
		return nil, emptyDocument(docID)
	}

	report := func(stage Stage, done, total int) {
		if req.Progress != nil {
			req.Progress(ProgressEvent{Stage: stage, Done: done, Total: total})
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, studyerrors.InternalError("engine is closed", nil)
	}

	sum := sha256.Sum256(req.Content)
	hash := hex.EncodeToString(sum[:])

	existing, err := e.catalog.GetDocument(ctx, docID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, studyerrors.New(studyerrors.ErrCodeIndexFailed, "failed to read the document catalog", err)
	}
	if existing != nil && existing.ContentHash == hash && !req.Force {
		e.logger.Info("ingest_skipped_unchanged", slog.String("document_id", docID))
		report(StageComplete, existing.PassageCount, existing.PassageCount)
		return &IngestResult{Document: existing, Unchanged: true, Duration: time.Since(start)}, nil
	}

	report(StageChunking, 0, 0)
	chunks, err := e.chunker.Chunk(ctx, &chunk.DocumentInput{DocumentID: docID, Content: req.Content})
	if err != nil {
		return nil, studyerrors.New(studyerrors.ErrCodeChunkingFailed, "failed to split the document into passages", err)
	}
	if len(chunks) == 0 {
		return nil, emptyDocument(docID)
	}
	passages, pageCount := toStorePassages(chunks)

	var oldIDs []string
	if existing != nil {
		if oldIDs, err = e.catalog.PassageIDs(ctx, docID); err != nil {
			return nil, studyerrors.New(studyerrors.ErrCodeIndexFailed, "failed to read the document catalog", err)
		}
	}

	total := len(passages)
	report(StageIndexing, 0, total)
	for lo := 0; lo < total; lo += e.config.IndexBatchSize {
		hi := min(lo+e.config.IndexBatchSize, total)
		if err := e.indexer.Index(ctx, passages[lo:hi]); err != nil {
			e.restoreIndexes(ctx, docID, passages[:hi], oldIDs)
			return nil, studyerrors.New(studyerrors.ErrCodeIndexFailed, "failed to index the document", err)
		}
		report(StageIndexing, hi, total)
	}

	title := req.Title
	if title == "" {
		title = chunk.DetectTitle(req.Content)
	}
	if title == "" {
		title = docID
	}

	report(StageCataloging, total, total)
	doc := &store.Document{
		ID:          docID,
		Title:       title,
		SourcePath:  req.SourcePath,
		ContentHash: hash,
		PageCount:   pageCount,
	}
	if err := e.catalog.SaveDocument(ctx, doc, passages); err != nil {
		e.restoreIndexes(ctx, docID, passages, oldIDs)
		return nil, studyerrors.New(studyerrors.ErrCodeIndexFailed, "failed to save the document", err)
	}
	e.dropStale(ctx, docID, oldIDs, passages)

	e.metrics.PassagesIngested(total)
	e.refreshDocumentGauge(ctx)

	elapsed := time.Since(start)
	e.logger.Info("ingest_completed",
		slog.String("document_id", docID),
		slog.Int("pages", pageCount),
		slog.Int("passages", total),
		slog.Bool("replaced", existing != nil),
		slog.Duration("duration", elapsed))
	report(StageComplete, total, total)

	return &IngestResult{Document: doc, Duration: elapsed}, nil
}

// Search runs a hybrid search within one document.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*Response, error) {
	out, err := e.retrieve(ctx, req.DocumentID, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}
	return NewResponse(out.Candidates, out.Degraded), nil
}

// Ground searches for question and builds the context block and answer
// prompt from the merged passages, in ranked order.
func (e *Engine) Ground(ctx context.Context, req GroundRequest) (*Grounding, error) {
	out, err := e.retrieve(ctx, req.DocumentID, req.Question, req.Limit)
	if err != nil {
		return nil, err
	}

	block, used := BuildContext(out.Candidates, e.config.MaxContextChars)
	sources := ToResults(out.Candidates[:used])

	prompt, err := BuildPrompt(strings.TrimSpace(req.Question), block, sources)
	if err != nil {
		return nil, studyerrors.InternalError("failed to build the answer prompt", err)
	}

	return &Grounding{
		Status:   StatusSuccess,
		Question: strings.TrimSpace(req.Question),
		Context:  block,
		Prompt:   prompt,
		Sources:  sources,
		Degraded: out.Degraded,
	}, nil
}

// retrieve validates a request and runs the retriever, recording telemetry.
func (e *Engine) retrieve(ctx context.Context, documentID, query string, limit int) (*searcher.Outcome, error) {
	start := time.Now()
	query = strings.TrimSpace(query)

	if err := e.validateQuery(documentID, query); err != nil {
		return nil, err
	}
	limit = e.resolveLimit(limit)

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, studyerrors.InternalError("engine is closed", nil)
	}

	if _, err := e.catalog.GetDocument(ctx, documentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, studyerrors.DocumentNotFound(documentID)
		}
		return nil, studyerrors.SearchError(err)
	}

	e.logger.Debug("search_started",
		slog.String("document_id", documentID),
		slog.Int("limit", limit))

	out, err := e.retriever.Search(ctx, documentID, query, limit)
	elapsed := time.Since(start)

	if err != nil {
		for _, f := range sourceFailures(err) {
			e.metrics.SourceFailed(string(f.Source))
		}

		outcome := telemetry.OutcomeFailed
		wrapped := studyerrors.SearchError(err)
		if errors.Is(err, merge.ErrInvalidCandidate) {
			outcome = telemetry.OutcomeInvalid
			wrapped = studyerrors.Classify(err)
		}
		e.record(documentID, query, outcome, 0, elapsed)

		e.logger.Error("search_failed",
			slog.String("document_id", documentID),
			slog.String("code", wrapped.Code),
			slog.String("error", err.Error()))
		return nil, wrapped
	}

	for _, f := range out.Failures {
		e.metrics.SourceFailed(string(f.Source))
	}
	outcome := telemetry.OutcomeOK
	if out.Degraded {
		outcome = telemetry.OutcomeDegraded
	}
	e.record(documentID, query, outcome, len(out.Candidates), elapsed)

	e.logger.Info("search_completed",
		slog.String("document_id", documentID),
		slog.Int("results", len(out.Candidates)),
		slog.Bool("degraded", out.Degraded),
		slog.Duration("duration", elapsed))

	return out, nil
}

func (e *Engine) record(documentID, query string, outcome telemetry.Outcome, results int, latency time.Duration) {
	e.metrics.ObserveSearch(outcome, latency, results)
	e.queries.Record(telemetry.QueryEvent{
		DocumentID:  documentID,
		Query:       query,
		Outcome:     outcome,
		ResultCount: results,
		Latency:     latency,
	})
}

func (e *Engine) validateQuery(documentID, query string) error {
	if strings.TrimSpace(documentID) == "" {
		return studyerrors.ValidationError("document ID is required", nil)
	}
	if query == "" {
		return studyerrors.New(studyerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if e.config.MaxQueryLength > 0 && len(query) > e.config.MaxQueryLength {
		return studyerrors.New(studyerrors.ErrCodeQueryTooLong,
			fmt.Sprintf("query is longer than %d characters", e.config.MaxQueryLength), nil)
	}
	return nil
}

// resolveLimit maps a requested limit onto the merge limit.
// Zero selects the default, negative means no limit.
func (e *Engine) resolveLimit(limit int) int {
	switch {
	case limit == 0:
		return e.config.DefaultLimit
	case limit < 0:
		return 0
	case limit > e.config.MaxLimit:
		return e.config.MaxLimit
	default:
		return limit
	}
}

// GetDocument returns one document or ERR_404_DOCUMENT_NOT_FOUND.
func (e *Engine) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc, err := e.catalog.GetDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, studyerrors.DocumentNotFound(id)
	}
	if err != nil {
		return nil, studyerrors.InternalError("failed to read the document catalog", err)
	}
	return doc, nil
}

// ListDocuments returns every indexed document ordered by title.
func (e *Engine) ListDocuments(ctx context.Context) ([]*store.Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	docs, err := e.catalog.ListDocuments(ctx)
	if err != nil {
		return nil, studyerrors.InternalError("failed to list documents", err)
	}
	return docs, nil
}

// DeleteDocument removes a document from the catalog and both indexes.
func (e *Engine) DeleteDocument(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.catalog.GetDocument(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return studyerrors.DocumentNotFound(id)
		}
		return studyerrors.InternalError("failed to read the document catalog", err)
	}

	removed := e.removeFromIndexes(ctx, id)

	// The catalog is the source of truth; index orphans are dropped at search time.
	if err := e.catalog.DeleteDocument(ctx, id); err != nil {
		return studyerrors.InternalError("failed to delete the document", err)
	}
	e.refreshDocumentGauge(ctx)

	e.logger.Info("document_deleted",
		slog.String("document_id", id),
		slog.Int("passages", removed))
	return nil
}

// removeFromIndexes deletes a document's catalog passages from both
// indexes, best effort. Callers hold e.mu.
func (e *Engine) removeFromIndexes(ctx context.Context, documentID string) int {
	ids, err := e.catalog.PassageIDs(ctx, documentID)
	if err != nil {
		e.logger.Warn("passage_ids_failed",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()))
		return 0
	}
	if err := e.indexer.Delete(ctx, ids); err != nil {
		e.logger.Warn("index_delete_failed",
			slog.String("document_id", documentID),
			slog.Int("passages", len(ids)),
			slog.String("error", err.Error()))
	}
	return len(ids)
}

// restoreIndexes undoes a failed ingest. The passages written so far leave
// both indexes and the previous version, still in the catalog, goes back in.
func (e *Engine) restoreIndexes(ctx context.Context, documentID string, written []*store.Passage, oldIDs []string) {
	ctx = context.WithoutCancel(ctx)
	log := e.logger.With(slog.String("document_id", documentID))

	ids := make([]string, len(written))
	for i, p := range written {
		ids[i] = p.ID
	}
	if err := e.indexer.Delete(ctx, ids); err != nil {
		log.Warn("ingest_rollback_delete_failed", slog.String("error", err.Error()))
	}
	if len(oldIDs) == 0 {
		return
	}

	byID, err := e.catalog.GetPassages(ctx, oldIDs)
	if err != nil {
		log.Warn("ingest_rollback_read_failed", slog.String("error", err.Error()))
		return
	}
	old := make([]*store.Passage, 0, len(oldIDs))
	for _, id := range oldIDs {
		if p, ok := byID[id]; ok {
			old = append(old, p)
		}
	}
	if err := e.indexer.Index(ctx, old); err != nil {
		log.Warn("ingest_rollback_reindex_failed",
			slog.Int("passages", len(old)),
			slog.String("error", err.Error()))
		return
	}
	log.Info("ingest_rolled_back", slog.Int("passages", len(old)))
}

// dropStale removes the index entries of passages the new version no
// longer has.
func (e *Engine) dropStale(ctx context.Context, documentID string, oldIDs []string, passages []*store.Passage) {
	if len(oldIDs) == 0 {
		return
	}
	keep := make(map[string]struct{}, len(passages))
	for _, p := range passages {
		keep[p.ID] = struct{}{}
	}
	var stale []string
	for _, id := range oldIDs {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := e.indexer.Delete(ctx, stale); err != nil {
		e.logger.Warn("index_delete_failed",
			slog.String("document_id", documentID),
			slog.Int("passages", len(stale)),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) refreshDocumentGauge(ctx context.Context) {
	if docs, err := e.catalog.ListDocuments(ctx); err == nil {
		e.metrics.SetDocuments(len(docs))
	}
}

// Stats returns corpus and query statistics.
func (e *Engine) Stats(ctx context.Context) (*EngineStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	docs, err := e.catalog.ListDocuments(ctx)
	if err != nil {
		return nil, studyerrors.InternalError("failed to list documents", err)
	}

	idx := e.indexer.Stats()
	stats := e.info
	stats.Documents = len(docs)
	stats.Passages = idx.PassageCount
	stats.Terms = idx.TermCount
	stats.Queries = e.queries.Snapshot()
	return &stats, nil
}

// Metrics returns the engine's collectors, which may be nil.
func (e *Engine) Metrics() *telemetry.Metrics {
	return e.metrics
}

// Close releases the indexes, the catalog and anything registered with
// WithOnClose. It is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if err := e.indexer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.catalog.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, fn := range e.onClose {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func emptyDocument(docID string) error {
	return studyerrors.New(studyerrors.ErrCodeEmptyDocument,
		fmt.Sprintf("document %q has no text to index", docID), nil).
		WithDetail("document_id", docID).
		WithSuggestion("Extract the text first (for PDFs: pdftotext file.pdf file.txt)")
}

func toStorePassages(chunks []*chunk.Passage) ([]*store.Passage, int) {
	passages := make([]*store.Passage, len(chunks))
	pages := 0
	for i, c := range chunks {
		passages[i] = &store.Passage{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Page:       c.Page,
			Ordinal:    c.Ordinal,
			Section:    c.Section,
			Content:    c.Content,
			TokenCount: c.TokenCount,
		}
		pages = max(pages, c.Page)
	}
	return passages, pages
}

// sourceFailures collects every *searcher.SourceError in err's tree.
func sourceFailures(err error) []*searcher.SourceError {
	var out []*searcher.SourceError
	var walk func(error)
	walk = func(err error) {
		switch x := err.(type) {
		case *searcher.SourceError:
			out = append(out, x)
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)
	return out
}

// MaxDocumentIDLength bounds document IDs.
const MaxDocumentIDLength = 128

// ValidateDocumentID accepts IDs of letters, digits, '-', '_' and '.'.
func ValidateDocumentID(id string) error {
	if id == "" {
		return studyerrors.ValidationError("document ID is required", nil)
	}
	if len(id) > MaxDocumentIDLength {
		return studyerrors.ValidationError(
			fmt.Sprintf("document ID is longer than %d characters", MaxDocumentIDLength), nil)
	}
	for _, r := range id {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
			return studyerrors.ValidationError(
				fmt.Sprintf("document ID %q contains %q; use letters, digits, '-', '_' or '.'", id, r), nil)
		}
	}
	return nil
}

// DeriveDocumentID slugs title, or the source file name without extension.
func DeriveDocumentID(title, sourcePath string) string {
	base := title
	if strings.TrimSpace(base) == "" && sourcePath != "" {
		name := filepath.Base(sourcePath)
		base = strings.TrimSuffix(name, filepath.Ext(name))
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := []rune(strings.TrimRight(b.String(), "-"))
	for len(string(slug)) > MaxDocumentIDLength {
		slug = slug[:len(slug)-1]
	}
	return strings.TrimRight(string(slug), "-")
}
