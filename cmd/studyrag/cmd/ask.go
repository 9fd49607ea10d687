package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/studyrag/internal/output"
	"github.com/Aman-CERP/studyrag/internal/search"
)

type askOptions struct {
	limit  int
	format string
}

func newAskCmd(g *globals) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <document> <question>",
		Short: "Build a grounded answer prompt for a question",
		Long: `Retrieve the passages of a document that best answer a question and
print an answer prompt that cites them by page. Pipe the prompt into the
language model of your choice.`,
		Example: `  studyrag ask biology "What does the mitochondrion do?" | llm`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, g, args[0], strings.Join(args[1:], " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum passages in the context (default: search.default_limit)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text (prompt only), json")

	return cmd
}

func runAsk(cmd *cobra.Command, g *globals, docID, question string, opts *askOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}

	engine, _, err := g.openEngine(search.OpenOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	grounding, err := engine.Ground(cmd.Context(), search.GroundRequest{
		DocumentID: docID,
		Question:   question,
		Limit:      opts.limit,
	})
	if err != nil {
		return err
	}

	if opts.format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), grounding)
	}

	if grounding.Degraded {
		output.New(cmd.ErrOrStderr()).Warning("One retrieval source failed; the context may be incomplete")
	}
	if len(grounding.Sources) == 0 {
		output.New(cmd.ErrOrStderr()).Warningf("No passages of %s matched the question", docID)
	}
	output.New(cmd.OutOrStdout()).Raw(grounding.Prompt + "\n")
	return nil
}
