package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/store"
)

func TestFormatSearchResults_Empty(t *testing.T) {
	assert.Equal(t, `No passages in "bio" match "ribosome"`, FormatSearchResults("bio", "ribosome", nil))
	assert.Equal(t, `No passages in "bio" match "ribosome"`,
		FormatSearchResults("bio", "ribosome", search.NewResponse(nil, false)))
}

func TestFormatSearchResults_SinglePassage(t *testing.T) {
	// Given: one passage without a section
	resp := &search.Response{Results: []search.Result{
		{Content: "ATP stores energy.", Score: 1, Source: "keyword", Page: 5},
	}}

	// When: formatting
	out := FormatSearchResults("bio", "ATP", resp)

	// Then: singular wording and no section line
	assert.Contains(t, out, "Found 1 passage\n")
	assert.Contains(t, out, "### 1. p. 5 (score: 1.00, keyword)\n\nATP stores energy.")
	assert.NotContains(t, out, "**Section:**")
}

func TestFormatSearchResults_Degraded(t *testing.T) {
	out := FormatSearchResults("bio", "enzymes", enzymeResponse(true))
	assert.Contains(t, out, "One retrieval source was unavailable")
}

func TestFormatSearchResults_KeepsRankOrder(t *testing.T) {
	out := FormatSearchResults("bio", "enzymes", enzymeResponse(false))
	first := strings.Index(out, "Enzymes lower activation energy.")
	second := strings.Index(out, "Catalysts speed up reactions.")
	assert.Greater(t, first, 0)
	assert.Greater(t, second, first)
}

func TestCitation(t *testing.T) {
	assert.Equal(t, "p. 4", citation(search.Result{Page: 4, PassageID: "x"}))
	assert.Equal(t, "passage bio-p0-3", citation(search.Result{PassageID: "bio-p0-3"}))
}

func TestFormatGrounding(t *testing.T) {
	assert.Equal(t, "", FormatGrounding(nil))

	withSources := &search.Grounding{Prompt: "P", Sources: []search.Result{{Page: 1}}}
	assert.Equal(t, "P", FormatGrounding(withSources))

	without := &search.Grounding{Prompt: "P"}
	assert.True(t, strings.HasPrefix(FormatGrounding(without), "No passages"))
	assert.True(t, strings.HasSuffix(FormatGrounding(without), "P"))
}

func TestFormatDocuments(t *testing.T) {
	// Given: no documents
	assert.Contains(t, FormatDocuments(nil), "No documents are indexed")

	// Given: two documents
	docs := []*store.Document{
		biologyDoc(),
		{ID: "chem", Title: "Organic Chemistry", PageCount: 12, PassageCount: 40},
	}

	// When: formatting
	out := FormatDocuments(docs)

	// Then: a header and one row per document
	assert.Contains(t, out, "| ID | Title | Pages | Passages |")
	assert.Contains(t, out, "| `bio` | Cell Biology | 3 | 4 |")
	assert.Contains(t, out, "| `chem` | Organic Chemistry | 12 | 40 |")
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit, want int
	}{
		{0, 5},
		{-1, 5},
		{1, 1},
		{10, 10},
		{50, 50},
		{51, 50},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.limit, 5, 1, 50), "limit %d", tt.limit)
	}
}

func TestIndexedAt_Zero(t *testing.T) {
	info := toDocumentInfo(&store.Document{ID: "x"})
	assert.Empty(t, info.IndexedAt)
}
