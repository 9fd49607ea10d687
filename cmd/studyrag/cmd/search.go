package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/output"
	"github.com/Aman-CERP/studyrag/internal/search"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
)

type searchOptions struct {
	limit       int
	format      string
	policy      string
	normalize   string
	keywordOnly bool
	vectorOnly  bool
}

func newSearchCmd(g *globals) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <document> <query>",
		Short: "Search one indexed document",
		Long: `Search an indexed document with keyword and semantic retrieval.

Results from both sources are merged into one ranked list. Identical
passages found by both sources appear once.`,
		Example: `  studyrag search biology "enzyme active site"
  studyrag search biology "photosynthesis" -n 3 --normalize minmax
  studyrag search biology "krebs cycle" --keyword-only -f json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return runSearch(cmd, g, args[0], query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum results (default: search.default_limit)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text, json")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Duplicate policy: vector_priority, max_score")
	cmd.Flags().StringVar(&opts.normalize, "normalize", "", "Score normalization: none, minmax, rank")
	cmd.Flags().BoolVar(&opts.keywordOnly, "keyword-only", false, "Use only keyword (BM25) retrieval")
	cmd.Flags().BoolVar(&opts.vectorOnly, "vector-only", false, "Use only semantic retrieval")
	cmd.MarkFlagsMutuallyExclusive("keyword-only", "vector-only")

	return cmd
}

func runSearch(cmd *cobra.Command, g *globals, docID, query string, opts *searchOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}

	cfg, err := g.config()
	if err != nil {
		return err
	}
	if opts.policy != "" {
		cfg.Search.DuplicatePolicy = opts.policy
	}
	if opts.normalize != "" {
		cfg.Search.Normalization = opts.normalize
	}

	sources := search.SourcesHybrid
	switch {
	case opts.keywordOnly:
		sources = search.SourcesKeyword
	case opts.vectorOnly:
		sources = search.SourcesVector
	}

	engine, _, err := g.openEngine(search.OpenOptions{Sources: sources})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	resp, err := engine.Search(cmd.Context(), search.SearchRequest{
		DocumentID: docID,
		Query:      query,
		Limit:      opts.limit,
	})
	if err != nil {
		return err
	}

	if opts.format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), resp)
	}
	printResults(output.New(cmd.OutOrStdout()), query, resp)
	return nil
}

func printResults(o *output.Writer, query string, resp *search.Response) {
	if resp.Degraded {
		o.Warning("One retrieval source failed; results come from the other source only")
	}
	if len(resp.Results) == 0 {
		o.Statusf("🔍", "No results for %q", query)
		return
	}

	o.Statusf("🔍", "%d results for %q", len(resp.Results), query)
	o.Newline()
	for i, r := range resp.Results {
		location := fmt.Sprintf("p. %d", r.Page)
		if r.Section != "" {
			location += " · " + r.Section
		}
		o.Header(fmt.Sprintf("%d. %s", i+1, location))
		o.Dim(fmt.Sprintf("   score %.4f · %s · %s", r.Score, r.Source, r.PassageID))
		o.Raw(indent(r.Content, "   "))
		o.Newline()
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON:
		return nil
	default:
		return studyerrors.ValidationError(
			fmt.Sprintf("unknown output format %q (expected text or json)", format), nil)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
