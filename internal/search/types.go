// Package search is the study-document retrieval engine: it ingests
// extracted document text into the catalog and both indexes, answers
// document-scoped hybrid searches, and builds grounding context for
// answer generation.
package search

import (
	"context"
	"time"

	"github.com/Aman-CERP/studyrag/internal/store"
	"github.com/Aman-CERP/studyrag/internal/telemetry"
)

// StudyEngine is the retrieval surface used by the CLI, HTTP API and MCP server.
type StudyEngine interface {
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	Search(ctx context.Context, req SearchRequest) (*Response, error)
	Ground(ctx context.Context, req GroundRequest) (*Grounding, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	ListDocuments(ctx context.Context) ([]*store.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	Stats(ctx context.Context) (*EngineStats, error)
	Close() error
}

// Stage names an ingestion step reported to progress callbacks.
type Stage string

const (
	StageChunking   Stage = "chunking"
	StageIndexing   Stage = "indexing"
	StageCataloging Stage = "cataloging"
	StageComplete   Stage = "complete"
)

// ProgressEvent reports ingestion progress. Done and Total count passages.
type ProgressEvent struct {
	Stage Stage
	Done  int
	Total int
}

// ProgressFunc receives ingestion progress.
type ProgressFunc func(ProgressEvent)

// IngestRequest adds or replaces one document.
type IngestRequest struct {
	// DocumentID scopes every later search. Derived from Title or
	// SourcePath when empty.
	DocumentID string

	Title      string
	SourcePath string

	// Content is extracted text. Pages are separated by form feeds.
	Content []byte

	// Force re-indexes even when the content hash is unchanged.
	Force bool

	Progress ProgressFunc
}

// IngestResult describes a finished ingestion.
type IngestResult struct {
	Document *store.Document `json:"document"`

	// Unchanged is true when ingestion was skipped because the content
	// hash matched the indexed copy.
	Unchanged bool `json:"unchanged"`

	Duration time.Duration `json:"duration_ns"`
}

// SearchRequest is a document-scoped search.
type SearchRequest struct {
	DocumentID string
	Query      string

	// Limit caps the results. Zero uses the configured default, a
	// negative value returns every merged candidate. Positive values
	// above the configured maximum are capped.
	Limit int
}

// GroundRequest asks for grounding context for a question.
type GroundRequest struct {
	DocumentID string
	Question   string
	Limit      int
}

// EngineStats summarizes the indexed corpus and recent queries.
type EngineStats struct {
	Documents    int                      `json:"documents"`
	Passages     int                      `json:"passages"`
	Terms        int                      `json:"terms"`
	Queries      *telemetry.QuerySnapshot `json:"queries"`
	DataDir      string                   `json:"data_dir,omitempty"`
	KeywordIndex string                   `json:"keyword_index,omitempty"`
}
