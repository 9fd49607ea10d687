// Package cmd provides the CLI commands for studyrag.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/studyrag/internal/config"
	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/logging"
	"github.com/Aman-CERP/studyrag/internal/profiling"
	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/pkg/version"
)

// globals holds persistent flags and per-run state shared by subcommands.
type globals struct {
	debug      bool
	configPath string

	profile profiling.Options

	cfg            *config.Config
	cfgErr         error
	loaded         bool
	loggingCleanup func()
	profiler       *profiling.Session
}

// config loads the configuration once: the --config file when given,
// otherwise the project configuration of the working directory.
func (g *globals) config() (*config.Config, error) {
	if g.loaded {
		return g.cfg, g.cfgErr
	}
	g.loaded = true

	if g.configPath != "" {
		g.cfg, g.cfgErr = config.LoadFile(g.configPath)
	} else {
		dir, err := os.Getwd()
		if err != nil {
			g.cfgErr = fmt.Errorf("get working directory: %w", err)
			return nil, g.cfgErr
		}
		g.cfg, g.cfgErr = config.Load(dir)
	}
	if g.cfgErr != nil {
		g.cfgErr = studyerrors.ConfigError(g.cfgErr.Error(), g.cfgErr)
	}
	return g.cfg, g.cfgErr
}

// setupLogging installs the default JSON logger. Logs go to the log file;
// --debug also mirrors them to stderr unless stderr must stay quiet.
func (g *globals) setupLogging(quiet bool) error {
	g.closeLogging()

	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = g.debug && !quiet
	if cfg, err := g.config(); err == nil {
		logCfg.Level = cfg.Logging.Level
		if cfg.Logging.FilePath != "" {
			logCfg.FilePath = cfg.Logging.FilePath
		}
		if cfg.Logging.MaxSizeMB > 0 {
			logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
		}
		if cfg.Logging.MaxFiles > 0 {
			logCfg.MaxFiles = cfg.Logging.MaxFiles
		}
	}
	if g.debug {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	g.loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// startProfiling starts the profiles requested by flags.
func (g *globals) startProfiling() error {
	if !g.profile.Enabled() {
		return nil
	}
	session, err := profiling.Start(g.profile)
	if err != nil {
		return err
	}
	g.profiler = session
	return nil
}

// finish stops profiling and closes the log file. It is safe to call twice.
func (g *globals) finish() {
	if g.profiler != nil {
		if err := g.profiler.Stop(); err != nil {
			slog.Warn("profile_write_failed", slog.String("error", err.Error()))
		}
		g.profiler = nil
	}
	g.closeLogging()
}

func (g *globals) closeLogging() {
	if g.loggingCleanup != nil {
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
}

// openEngine opens the engine over the configured data directory.
func (g *globals) openEngine(opts search.OpenOptions) (*search.Engine, *config.Config, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	engine, err := search.Open(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

// NewRootCmd creates the root command for the studyrag CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *globals) {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "studyrag",
		Short: "Hybrid search over your study documents",
		Long: `studyrag indexes study documents and answers questions about one
document at a time by combining keyword (BM25) and semantic retrieval.

Get started:
  studyrag init
  studyrag index notes/biology.txt
  studyrag search biology "what do enzymes do"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !g.debug {
				gin.SetMode(gin.ReleaseMode)
			}
			if err := g.setupLogging(isMCPServe(cmd)); err != nil {
				return err
			}
			return g.startProfiling()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			g.finish()
		},
	}

	cmd.SetVersionTemplate("studyrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging (also mirrored to stderr)")
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default: .studyrag.yaml in the current directory)")
	cmd.PersistentFlags().StringVar(&g.profile.CPUPath, "cpuprofile", "", "Write a CPU profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.HeapPath, "memprofile", "", "Write a heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&g.profile.TracePath, "trace", "", "Write an execution trace to file")
	_ = cmd.PersistentFlags().MarkHidden("trace")

	cmd.AddCommand(newIndexCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newAskCmd(g))
	cmd.AddCommand(newDocsCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newDoctorCmd(g))
	cmd.AddCommand(newEvalCmd(g))
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd, g
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, g := newRootCmd()
	defer g.finish()

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		printError(os.Stderr, err, g.debug)
	}
	return err
}

// printError renders err for the terminal.
func printError(w io.Writer, err error, debug bool) {
	if _, ok := studyerrors.As(err); ok {
		_, _ = fmt.Fprint(w, studyerrors.FormatForUser(err, debug))
		_, _ = fmt.Fprintln(w)
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
