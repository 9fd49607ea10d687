package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/studyrag/internal/config"
	"github.com/Aman-CERP/studyrag/internal/output"
)

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Inspect the effective configuration and manage the user config file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/studyrag/config.yaml)
  3. Project config (.studyrag.yaml, or --config)
  4. .env next to the project config (STUDYRAG_* only)
  5. Environment variables (STUDYRAG_*)`,
		Example: `  # Show effective configuration
  studyrag config show

  # Create the user config from defaults
  studyrag config init`,
	}

	cmd.AddCommand(newConfigShowCmd(g))
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd(g *globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if jsonOutput {
				out, err := cfg.JSON()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file with default settings at
~/.config/studyrag/config.yaml (or $XDG_CONFIG_HOME/studyrag/config.yaml).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			return writeConfigFile(output.New(cmd.OutOrStdout()), path, force, config.NewConfig().WriteYAML)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

// writeConfigFile calls write for path unless a file exists there and
// force is unset.
func writeConfigFile(o *output.Writer, path string, force bool, write func(string) error) error {
	if _, err := os.Stat(path); err == nil && !force {
		o.Warningf("Config already exists: %s", path)
		o.Dim("Use --force to overwrite.")
		return nil
	}
	if err := write(path); err != nil {
		return err
	}
	o.Successf("Wrote %s", path)
	return nil
}
