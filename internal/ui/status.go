package ui

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/telemetry"
)

// StatsInfo is what `studyrag stats` displays.
type StatsInfo struct {
	*search.EngineStats
	StorageSize int64     `json:"storage_size"`
	LastIndexed time.Time `json:"last_indexed,omitzero"`
}

// StatsRenderer displays engine statistics.
type StatsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatsRenderer creates a stats renderer.
func NewStatsRenderer(out io.Writer, noColor bool) *StatsRenderer {
	return &StatsRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays stats to the terminal.
func (r *StatsRenderer) Render(info StatsInfo) error {
	if info.EngineStats == nil {
		return fmt.Errorf("no stats to render")
	}

	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("studyrag: "+info.DataDir))

	_, _ = fmt.Fprintf(r.out, "  Documents:    %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Passages:     %d\n", info.Passages)
	_, _ = fmt.Fprintf(r.out, "  Terms:        %d\n", info.Terms)
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.LastIndexed))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Keyword index: %s\n", info.KeywordIndex)
	_, _ = fmt.Fprintf(r.out, "    Total:         %s\n", FormatBytes(info.StorageSize))

	if q := info.Queries; q != nil && q.TotalQueries > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Queries (this session):")
		_, _ = fmt.Fprintf(r.out, "    Total:    %d\n", q.TotalQueries)
		_, _ = fmt.Fprintf(r.out, "    Degraded: %s\n", r.renderCount(q.OutcomeCounts[telemetry.OutcomeDegraded], r.styles.Warning))
		_, _ = fmt.Fprintf(r.out, "    Failed:   %s\n", r.renderCount(q.OutcomeCounts[telemetry.OutcomeFailed], r.styles.Error))
		_, _ = fmt.Fprintf(r.out, "    No hits:  %.0f%%\n", q.ZeroResultPercentage())
		if docs := busiestDocuments(q.DocumentCounts, 3); docs != "" {
			_, _ = fmt.Fprintf(r.out, "    Asked:    %s\n", docs)
		}
		if len(q.TopTerms) > 0 {
			terms := make([]string, 0, 5)
			for _, tc := range q.TopTerms[:min(5, len(q.TopTerms))] {
				terms = append(terms, tc.Term)
			}
			_, _ = fmt.Fprintf(r.out, "    Terms:    %s\n", strings.Join(terms, ", "))
		}
	}
	return nil
}

// busiestDocuments lists up to n document IDs by question count, most
// asked first, as "id (count)".
func busiestDocuments(counts map[string]int64, n int) string {
	ids := slices.SortedFunc(maps.Keys(counts), func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	parts := make([]string, 0, n)
	for _, id := range ids[:min(n, len(ids))] {
		parts = append(parts, fmt.Sprintf("%s (%s)", id, humanize.Comma(counts[id])))
	}
	return strings.Join(parts, ", ")
}

// RenderJSON outputs stats as JSON.
func (r *StatsRenderer) RenderJSON(info StatsInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderCount highlights non-zero counts.
func (r *StatsRenderer) renderCount(n int64, style lipgloss.Style) string {
	s := fmt.Sprint(n)
	if n == 0 {
		return s
	}
	return style.Render(s)
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	return humanize.Time(t)
}

// FormatBytes formats a size in binary units. Negative sizes print as 0 B.
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
