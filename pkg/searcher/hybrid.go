package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/studyrag/pkg/merge"
)

// Fetch sizing defaults.
const (
	// DefaultOverFetch multiplies the requested limit per source so that
	// de-duplication still leaves enough candidates.
	DefaultOverFetch = 2

	// MinFetch is the smallest per-source fetch.
	MinFetch = 10

	// UnlimitedFetch is the per-source fetch when no limit is requested.
	UnlimitedFetch = 100
)

// HybridSearcher fetches keyword and vector results for one document
// concurrently, resolves them to passages and merges them with a
// [merge.Merger].
//
// Supports three modes:
//   - Hybrid: both sources
//   - Keyword-only: no vector searcher
//   - Vector-only: no keyword searcher
//
// A missing source contributes an empty list. A failing source degrades
// the search to the surviving one unless strict mode is on.
//
// Thread-safe for concurrent use.
type HybridSearcher struct {
	keyword   Searcher
	vector    Searcher
	catalog   PassageLookup
	merger    *merge.Merger
	strict    bool
	timeout   time.Duration
	overFetch int
	logger    *slog.Logger
}

// HybridOption configures HybridSearcher.
type HybridOption func(*HybridSearcher)

// WithKeywordSearcher sets the keyword (BM25) source.
func WithKeywordSearcher(s Searcher) HybridOption {
	return func(h *HybridSearcher) {
		h.keyword = s
	}
}

// WithVectorSearcher sets the vector source.
func WithVectorSearcher(s Searcher) HybridOption {
	return func(h *HybridSearcher) {
		h.vector = s
	}
}

// WithCatalog sets the passage lookup used to hydrate hits (required).
func WithCatalog(c PassageLookup) HybridOption {
	return func(h *HybridSearcher) {
		h.catalog = c
	}
}

// WithMerger sets the merger. Defaults to vector priority without normalization.
func WithMerger(m *merge.Merger) HybridOption {
	return func(h *HybridSearcher) {
		h.merger = m
	}
}

// WithStrict makes any source failure fail the search.
func WithStrict(strict bool) HybridOption {
	return func(h *HybridSearcher) {
		h.strict = strict
	}
}

// WithSourceTimeout bounds each source fetch. Zero means no bound.
func WithSourceTimeout(d time.Duration) HybridOption {
	return func(h *HybridSearcher) {
		h.timeout = d
	}
}

// WithOverFetch sets the per-source fetch multiplier. Values below 1 are ignored.
func WithOverFetch(n int) HybridOption {
	return func(h *HybridSearcher) {
		if n >= 1 {
			h.overFetch = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) HybridOption {
	return func(h *HybridSearcher) {
		h.logger = l
	}
}

// NewHybridSearcher creates a hybrid searcher.
//
// Returns ErrNoSearchers when both sources are nil and ErrNilCatalog when
// no catalog is set.
func NewHybridSearcher(opts ...HybridOption) (*HybridSearcher, error) {
	h := &HybridSearcher{overFetch: DefaultOverFetch}

	for _, opt := range opts {
		opt(h)
	}

	if h.keyword == nil && h.vector == nil {
		return nil, ErrNoSearchers
	}
	if h.catalog == nil {
		return nil, ErrNilCatalog
	}
	if h.merger == nil {
		m, err := merge.New()
		if err != nil {
			return nil, err
		}
		h.merger = m
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	return h, nil
}

// Outcome is the result of one hybrid search.
type Outcome struct {
	// Candidates is the merged list, never nil.
	Candidates []merge.Candidate

	// Degraded is true when a configured source failed and the search
	// continued with the other.
	Degraded bool

	// Failures holds the error of each failed source.
	Failures []*SourceError

	// VectorHits and KeywordHits count hydrated candidates per source
	// before merging.
	VectorHits  int
	KeywordHits int
}

// Search retrieves, hydrates and merges results for query within documentID.
// A limit <= 0 returns every merged candidate.
func (h *HybridSearcher) Search(ctx context.Context, documentID, query string, limit int) (*Outcome, error) {
	fetch := h.fetchLimit(limit)

	var keywordResults, vectorResults []Result
	var keywordErr, vectorErr error

	g, gctx := errgroup.WithContext(ctx)

	if h.keyword != nil {
		g.Go(func() error {
			keywordResults, keywordErr = h.fetch(gctx, h.keyword, documentID, query, fetch)
			if keywordErr != nil && h.strict {
				return &SourceError{Source: merge.SourceKeyword, Err: keywordErr}
			}
			return nil
		})
	}

	if h.vector != nil {
		g.Go(func() error {
			vectorResults, vectorErr = h.fetch(gctx, h.vector, documentID, query, fetch)
			if vectorErr != nil && h.strict {
				return &SourceError{Source: merge.SourceVector, Err: vectorErr}
			}
			return nil
		})
	}

	// In strict mode the first failure cancels the other source and is
	// the one reported.
	firstErr := g.Wait()

	out := &Outcome{}
	if keywordErr != nil {
		out.Failures = append(out.Failures, h.sourceFailed(merge.SourceKeyword, keywordErr))
	}
	if vectorErr != nil {
		out.Failures = append(out.Failures, h.sourceFailed(merge.SourceVector, vectorErr))
	}

	configured := 0
	if h.keyword != nil {
		configured++
	}
	if h.vector != nil {
		configured++
	}

	switch {
	case firstErr != nil:
		return nil, firstErr
	case len(out.Failures) == configured:
		errs := make([]error, 0, len(out.Failures)+1)
		errs = append(errs, ErrAllSourcesFailed)
		for _, f := range out.Failures {
			errs = append(errs, f)
		}
		return nil, errors.Join(errs...)
	case len(out.Failures) > 0:
		out.Degraded = true
	}

	vectorCands, keywordCands, err := h.hydrate(ctx, documentID, vectorResults, keywordResults)
	if err != nil {
		return nil, err
	}
	out.VectorHits = len(vectorCands)
	out.KeywordHits = len(keywordCands)

	merged, err := h.merger.Merge(vectorCands, keywordCands, limit)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	out.Candidates = merged

	h.logger.Debug("merge_completed",
		slog.String("document_id", documentID),
		slog.Int("vector_hits", out.VectorHits),
		slog.Int("keyword_hits", out.KeywordHits),
		slog.Int("merged", len(merged)),
		slog.Bool("degraded", out.Degraded))

	return out, nil
}

// fetchLimit returns the per-source result count for a requested limit.
func (h *HybridSearcher) fetchLimit(limit int) int {
	if limit <= 0 {
		return UnlimitedFetch
	}
	return max(limit*h.overFetch, MinFetch)
}

func (h *HybridSearcher) fetch(ctx context.Context, s Searcher, documentID, query string, limit int) ([]Result, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	return s.Search(ctx, documentID, query, limit)
}

func (h *HybridSearcher) sourceFailed(src merge.Source, err error) *SourceError {
	h.logger.Warn("source_failed",
		slog.String("source", string(src)),
		slog.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		slog.String("error", err.Error()))
	return &SourceError{Source: src, Err: err}
}

// hydrate turns source hits into merge candidates carrying passage text and
// page metadata. Hits the catalog does not know, or that belong to another
// document, are dropped.
func (h *HybridSearcher) hydrate(ctx context.Context, documentID string, vector, keyword []Result) ([]merge.Candidate, []merge.Candidate, error) {
	ids := make([]string, 0, len(vector)+len(keyword))
	for _, r := range vector {
		ids = append(ids, r.ID)
	}
	for _, r := range keyword {
		ids = append(ids, r.ID)
	}

	passages, err := h.catalog.GetPassages(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load passages: %w", err)
	}

	convert := func(src merge.Source, results []Result) []merge.Candidate {
		cands := make([]merge.Candidate, 0, len(results))
		for _, r := range results {
			p, ok := passages[r.ID]
			if !ok || (documentID != "" && p.DocumentID != documentID) {
				h.logger.Debug("orphan_hit_dropped",
					slog.String("source", string(src)),
					slog.String("passage_id", r.ID))
				continue
			}
			cands = append(cands, merge.Candidate{
				Content: p.Content,
				Score:   r.Score,
				Source:  src,
				Metadata: map[string]string{
					merge.MetaPage:       strconv.Itoa(p.Page),
					merge.MetaSection:    p.Section,
					merge.MetaDocumentID: p.DocumentID,
					merge.MetaPassageID:  p.ID,
				},
			})
		}
		return cands
	}

	return convert(merge.SourceVector, vector), convert(merge.SourceKeyword, keyword), nil
}
