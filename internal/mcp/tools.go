package mcp

import (
	"time"

	"github.com/Aman-CERP/studyrag/internal/search"
)

// Tool names.
const (
	ToolSearchDocument = "search_document"
	ToolGroundQuestion = "ground_question"
	ToolListDocuments  = "list_documents"
)

// SearchDocumentInput defines the input schema for search_document.
type SearchDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"ID of the study document to search, from list_documents"`
	Query      string `json:"query" jsonschema:"what to look for in the document"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of passages, default 5"`
}

// SearchDocumentOutput defines the output schema for search_document.
type SearchDocumentOutput struct {
	Results  []search.Result `json:"results" jsonschema:"passages ranked by relevance"`
	Degraded bool            `json:"degraded,omitempty" jsonschema:"true when one retrieval source failed and results come from the other"`
}

// GroundQuestionInput defines the input schema for ground_question.
type GroundQuestionInput struct {
	DocumentID string `json:"document_id" jsonschema:"ID of the study document the question is about"`
	Question   string `json:"question" jsonschema:"the student's question"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of passages to ground on, default 5"`
}

// GroundQuestionOutput defines the output schema for ground_question.
type GroundQuestionOutput struct {
	Context  string          `json:"context" jsonschema:"passages joined in ranked order"`
	Prompt   string          `json:"prompt" jsonschema:"ready-to-use answer prompt with page citations"`
	Sources  []search.Result `json:"sources" jsonschema:"passages in the context, in order"`
	Degraded bool            `json:"degraded,omitempty"`
}

// ListDocumentsInput defines the input schema for list_documents (no parameters).
type ListDocumentsInput struct{}

// ListDocumentsOutput defines the output schema for list_documents.
type ListDocumentsOutput struct {
	Documents []DocumentInfo `json:"documents"`
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Pages     int    `json:"pages"`
	Passages  int    `json:"passages"`
	IndexedAt string `json:"indexed_at"`
}

func indexedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
