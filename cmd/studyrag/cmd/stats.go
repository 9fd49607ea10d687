package cmd

import (
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/ui"
)

func newStatsCmd(g *globals) *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index and query statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, cfg, err := g.openEngine(search.OpenOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			stats, err := engine.Stats(cmd.Context())
			if err != nil {
				return err
			}
			docs, err := engine.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}

			info := ui.StatsInfo{
				EngineStats: stats,
				StorageSize: dirSize(cfg.Paths.DataDir),
			}
			for _, d := range docs {
				if d.IndexedAt.After(info.LastIndexed) {
					info.LastIndexed = d.IndexedAt
				}
			}

			renderer := ui.NewStatsRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

// dirSize sums regular file sizes under dir. Unreadable entries are skipped.
func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
