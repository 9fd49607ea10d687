package cmd

import (
	"github.com/spf13/cobra"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/preflight"
)

func newDoctorCmd(g *globals) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and data directory",
		Long: `Run diagnostics to make sure studyrag can operate on the configured
data directory.

Checks:
  - Configuration validity
  - Disk space (100MB minimum)
  - Write permissions
  - File descriptor limits (1024 minimum)
  - Whether another studyrag process holds the data directory
  - Index compatibility with embeddings.dimensions and keyword_backend`,
		Example: `  studyrag doctor
  studyrag doctor --verbose
  studyrag doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgErr := g.config()

			checker := preflight.New(cfg,
				preflight.WithConfigError(cfgErr),
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(cmd.Context())

			if jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), doctorReport{
					Status: checker.SummaryStatus(results),
					Checks: results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return studyerrors.New(studyerrors.ErrCodeConfigInvalid, "system check failed", nil).
					WithSuggestion("Fix the failed checks listed above")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}
