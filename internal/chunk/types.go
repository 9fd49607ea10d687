// Package chunk splits extracted study-document text into retrievable
// passages that carry page and section metadata.
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Passage size defaults
const (
	DefaultMaxTokens     = 256
	DefaultOverlapTokens = 32
	TokensPerChar        = 4 // Rough approximation: 4 chars = 1 token
)

// PageSeparator splits pages. PDF text extractors (pdftotext and similar)
// emit a form feed at each page break.
const PageSeparator = "\f"

// Passage is a retrievable span of a document.
type Passage struct {
	ID         string // SHA256(document|page|ordinal)[:16]
	DocumentID string
	Page       int // 1-indexed
	Ordinal    int // 0-indexed position within the document
	Section    string
	Content    string
	TokenCount int
}

// DocumentInput is input for the Chunker interface.
type DocumentInput struct {
	DocumentID string
	Content    []byte
}

// Chunker splits a document into passages.
type Chunker interface {
	Chunk(ctx context.Context, doc *DocumentInput) ([]*Passage, error)
}

// PassageID derives a stable passage ID from its position.
func PassageID(documentID string, page, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", documentID, page, ordinal)))
	return hex.EncodeToString(sum[:])[:16]
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return (len(text) + TokensPerChar - 1) / TokensPerChar
}
