// Package store persists study documents, their passages, and the keyword
// and vector indexes that retrieval runs against.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a document or passage does not exist.
var ErrNotFound = errors.New("not found")

// Document is one uploaded study document.
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SourcePath   string    `json:"source_path,omitempty"`
	ContentHash  string    `json:"content_hash"`
	PageCount    int       `json:"page_count"`
	PassageCount int       `json:"passage_count"`
	IndexedAt    time.Time `json:"indexed_at"`
}

// Passage is a retrievable span of a document.
type Passage struct {
	ID         string
	DocumentID string
	Page       int // 1-indexed
	Ordinal    int // position within the document
	Section    string
	Content    string
	TokenCount int
}

// PassageStore is the catalog of documents and their passages.
type PassageStore interface {
	// SaveDocument upserts doc and replaces all of its passages.
	SaveDocument(ctx context.Context, doc *Document, passages []*Passage) error

	// GetDocument returns ErrNotFound for unknown IDs.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// ListDocuments returns documents ordered by title.
	ListDocuments(ctx context.Context) ([]*Document, error)

	// GetPassages returns the passages that exist, keyed by ID.
	GetPassages(ctx context.Context, ids []string) (map[string]*Passage, error)

	// PassageIDs returns the passage IDs of a document in ordinal order.
	PassageIDs(ctx context.Context, documentID string) ([]string, error)

	// DeleteDocument removes a document and its passages.
	DeleteDocument(ctx context.Context, id string) error

	Close() error
}

// IndexDoc is the unit the keyword index stores: a passage ID, the
// document it belongs to, and its text.
type IndexDoc struct {
	ID         string
	DocumentID string
	Content    string
}

// BM25Result represents a single keyword search result.
type BM25Result struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// IndexStats contains index statistics.
type IndexStats struct {
	DocumentCount int
	TermCount     int
}

// BM25Index provides lexical search scoped to a document.
type BM25Index interface {
	// Index adds passages. Existing IDs are replaced.
	Index(ctx context.Context, docs []*IndexDoc) error

	// Search returns passages of documentID matching query. An empty
	// documentID searches every document.
	Search(ctx context.Context, documentID, query string, limit int) ([]*BM25Result, error)

	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all passage IDs in the index (for consistency checks)
	AllIDs() ([]string, error)

	Stats() *IndexStats
	Close() error
}

// BM25Config configures the keyword index.
type BM25Config struct {
	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords:      DefaultProseStopWords,
		MinTokenLength: 2,
	}
}

// DefaultProseStopWords are English function words that carry no topical
// signal in study material.
var DefaultProseStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
	"from", "has", "have", "in", "into", "is", "it", "its", "of", "on",
	"or", "that", "the", "their", "then", "there", "these", "this", "to",
	"was", "were", "what", "when", "which", "who", "why", "will", "with",
	"how", "does", "do", "did",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Passage ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (256 for the static embedder)
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int

	// OverFetch multiplies k when a search is scoped to a document, since
	// the graph holds every document's vectors (default: 4)
	OverFetch int
}

// DefaultVectorStoreConfig returns sensible defaults for vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
		OverFetch:  4,
	}
}

// VectorStore provides semantic search scoped to a document.
type VectorStore interface {
	// Add inserts vectors belonging to documentID. Existing IDs are replaced.
	Add(ctx context.Context, documentID string, ids []string, vectors [][]float32) error

	// Search finds the k nearest vectors of documentID. An empty
	// documentID searches every document.
	Search(ctx context.Context, documentID string, query []float32, k int) ([]*VectorResult, error)

	Delete(ctx context.Context, ids []string) error

	AllIDs() []string
	Contains(id string) bool
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (delete the data dir and re-index)", e.Expected, e.Got)
}
