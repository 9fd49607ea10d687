package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/studyrag/internal/output"
	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/store"
)

func newDocsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List or remove indexed documents",
	}
	cmd.AddCommand(newDocsListCmd(g))
	cmd.AddCommand(newDocsDeleteCmd(g))
	return cmd
}

func newDocsListCmd(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List indexed documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			engine, _, err := g.openEngine(search.OpenOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			docs, err := engine.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			if format == formatJSON {
				if docs == nil {
					docs = []*store.Document{}
				}
				return writeJSON(cmd.OutOrStdout(), docs)
			}
			return printDocuments(cmd, docs)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json")
	return cmd
}

func printDocuments(cmd *cobra.Command, docs []*store.Document) error {
	if len(docs) == 0 {
		o := output.New(cmd.OutOrStdout())
		o.Status("📚", "No documents indexed yet")
		o.Dim("Run `studyrag index <file>` to add one.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tPAGES\tPASSAGES\tINDEXED")
	for _, d := range docs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			d.ID, d.Title, d.PageCount, d.PassageCount, d.IndexedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func newDocsDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <document>...",
		Aliases: []string{"rm"},
		Short:   "Remove documents from the indexes",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := g.openEngine(search.OpenOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			o := output.New(cmd.OutOrStdout())
			for _, id := range args {
				if err := engine.DeleteDocument(cmd.Context(), id); err != nil {
					return err
				}
				o.Successf("Deleted %s", id)
			}
			return nil
		},
	}
}
