// Package ui renders ingestion progress and engine status in the terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/studyrag/internal/search"
)

// pipeline is the display order of ingestion stages.
var pipeline = []search.Stage{
	search.StageChunking,
	search.StageIndexing,
	search.StageCataloging,
}

// StageLabel returns the human-readable stage name.
func StageLabel(s search.Stage) string {
	switch s {
	case search.StageChunking:
		return "Chunk"
	case search.StageIndexing:
		return "Index"
	case search.StageCataloging:
		return "Catalog"
	case search.StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// StageIcon returns the short stage tag for plain text output.
func StageIcon(s search.Stage) string {
	switch s {
	case search.StageChunking:
		return "CHUNK"
	case search.StageIndexing:
		return "INDEX"
	case search.StageCataloging:
		return "CATALOG"
	case search.StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// stageRank orders stages; unknown stages sort before the pipeline.
func stageRank(s search.Stage) int {
	if s == search.StageComplete {
		return len(pipeline)
	}
	for i, p := range pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// CompletionStats summarizes one ingestion.
type CompletionStats struct {
	DocumentID string
	Title      string
	Pages      int
	Passages   int
	Duration   time.Duration
	Unchanged  bool
}

// Renderer displays ingestion progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates the progress display.
	UpdateProgress(event search.ProgressEvent)

	// Fail reports an ingestion error.
	Fail(err error)

	// Complete marks rendering as complete with a summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Document   string // Document ID shown in the header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithDocument sets the document ID shown in the header.
func WithDocument(id string) ConfigOption {
	return func(c *Config) {
		c.Document = id
	}
}

// NewConfig creates a Config for output with the given options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// text renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
