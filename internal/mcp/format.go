package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/store"
)

// FormatSearchResults formats a search response as markdown.
func FormatSearchResults(documentID, query string, resp *search.Response) string {
	if resp == nil || len(resp.Results) == 0 {
		return fmt.Sprintf("No passages in %q match \"%s\"", documentID, query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Passages in %q for \"%s\"\n\n", documentID, query)
	fmt.Fprintf(&sb, "Found %d passage", len(resp.Results))
	if len(resp.Results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")
	if resp.Degraded {
		sb.WriteString("> One retrieval source was unavailable; results come from the other.\n\n")
	}

	for i, r := range resp.Results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r search.Result) {
	fmt.Fprintf(sb, "### %d. %s (score: %.2f, %s)\n", num, citation(r), r.Score, r.Source)
	if r.Section != "" {
		fmt.Fprintf(sb, "**Section:** %s\n", r.Section)
	}
	sb.WriteString("\n")
	sb.WriteString(r.Content)
	sb.WriteString("\n\n")
}

// citation renders "p. N", or "passage <id>" when the page is unknown.
func citation(r search.Result) string {
	if r.Page > 0 {
		return fmt.Sprintf("p. %d", r.Page)
	}
	return "passage " + r.PassageID
}

// FormatGrounding returns the answer prompt, prefixed with a note when
// no passage matched.
func FormatGrounding(g *search.Grounding) string {
	if g == nil {
		return ""
	}
	if len(g.Sources) == 0 {
		return "No passages in the document relate to this question.\n\n" + g.Prompt
	}
	return g.Prompt
}

// FormatDocuments formats the document list as markdown.
func FormatDocuments(docs []*store.Document) string {
	if len(docs) == 0 {
		return "No documents are indexed. Run `studyrag index <file>` first."
	}

	var sb strings.Builder
	sb.WriteString("## Study Documents\n\n")
	sb.WriteString("| ID | Title | Pages | Passages |\n|---|---|---|---|\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "| `%s` | %s | %d | %d |\n", d.ID, d.Title, d.PageCount, d.PassageCount)
	}
	return sb.String()
}

// clampLimit bounds limit to [min, max], using defaultVal for zero or less.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

func toDocumentInfo(d *store.Document) DocumentInfo {
	return DocumentInfo{
		ID:        d.ID,
		Title:     d.Title,
		Pages:     d.PageCount,
		Passages:  d.PassageCount,
		IndexedAt: indexedAt(d.IndexedAt),
	}
}
