package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/output"
	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/validation"
)

type evalOptions struct {
	docID      string
	limit      int
	jsonOutput bool
}

func newEvalCmd(g *globals) *cobra.Command {
	opts := &evalOptions{}

	cmd := &cobra.Command{
		Use:   "eval <queries.yaml>",
		Short: "Measure retrieval quality with a query suite",
		Long: `Run a YAML suite of queries against an indexed document and check
that expected pages or passages are retrieved.

Tier 1 queries must all pass; tier 2 queries are reported only; negative
queries must complete without crashing. The command fails when the suite
does not pass, so it can gate changes to merge settings.`,
		Example: `  studyrag eval testdata/biology-queries.yaml
  studyrag eval queries.yaml --doc biology --normalize rank`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, g, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.docID, "doc", "", "Document to evaluate (default: the suite's document)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Result depth a query is judged on (default: the suite's limit)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runEval(cmd *cobra.Command, g *globals, path string, opts *evalOptions) error {
	suite, err := validation.LoadQueries(path)
	if err != nil {
		return studyerrors.ValidationError(err.Error(), err)
	}

	docID := opts.docID
	if docID == "" {
		docID = suite.Document
	}
	limit := opts.limit
	if limit <= 0 {
		limit = suite.Limit
	}

	engine, _, err := g.openEngine(search.OpenOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	if _, err := engine.GetDocument(cmd.Context(), docID); err != nil {
		return err
	}

	v, err := validation.NewValidator(engine, docID, limit)
	if err != nil {
		return err
	}
	result := v.RunAll(cmd.Context(), suite)

	if opts.jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		printEval(output.New(cmd.OutOrStdout()), result)
	}

	if !result.Passed() {
		return studyerrors.New(studyerrors.ErrCodeSearchFailed,
			fmt.Sprintf("retrieval suite failed: tier 1 %d/%d, negative %d/%d",
				result.Tier1Pass, result.Tier1Total, result.NegPass, result.NegTotal), nil)
	}
	return nil
}

func printEval(o *output.Writer, r *validation.ValidationResult) {
	o.Header(fmt.Sprintf("Retrieval suite for %s (top %d)", r.Document, r.Limit))
	o.Newline()

	sections := []struct {
		name    string
		results []validation.TestResult
	}{{"Tier 1", r.Tier1}, {"Tier 2", r.Tier2}, {"Negative", r.Negative}}
	for _, s := range sections {
		if len(s.results) == 0 {
			continue
		}
		o.Status("", s.name+":")
		for _, tr := range s.results {
			line := fmt.Sprintf("%s %q", tr.Spec.ID, tr.Spec.Query)
			switch {
			case tr.Error != "":
				o.Errorf("%s: %s", line, tr.Error)
			case !tr.Passed:
				o.Errorf("%s: not in top %d (pages %v)", line, r.Limit, tr.TopPages)
			case tr.MatchedAt >= 0:
				o.Successf("%s: rank %d", line, tr.MatchedAt+1)
			default:
				o.Successf("%s", line)
			}
		}
		o.Newline()
	}

	o.KeyValue("Tier 1", fmt.Sprintf("%d/%d", r.Tier1Pass, r.Tier1Total))
	o.KeyValue("Tier 2", fmt.Sprintf("%d/%d", r.Tier2Pass, r.Tier2Total))
	o.KeyValue("Negative", fmt.Sprintf("%d/%d", r.NegPass, r.NegTotal))
	o.KeyValue("MRR", fmt.Sprintf("%.3f", r.MRR))
}
