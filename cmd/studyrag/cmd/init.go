package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/studyrag/configs"
	"github.com/Aman-CERP/studyrag/internal/config"
	"github.com/Aman-CERP/studyrag/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a project configuration file",
		Long: `Create a commented .studyrag.yaml in dir (default: the current
directory). Commands run from that directory pick it up, and the indexes
are kept in dir/.studyrag.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", dir, err)
			}
			if info, err := os.Stat(abs); err != nil || !info.IsDir() {
				return fmt.Errorf("%s is not a directory", abs)
			}

			o := output.New(cmd.OutOrStdout())
			if err := writeConfigFile(o, filepath.Join(abs, config.ProjectConfigFile), force, writeProjectTemplate); err != nil {
				return err
			}
			o.Newline()
			o.Status("", "Next steps:")
			o.Code("studyrag index notes.txt\nstudyrag search notes \"your question\"")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .studyrag.yaml")
	return cmd
}

// writeProjectTemplate writes the commented starter configuration.
func writeProjectTemplate(path string) error {
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
