package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/studyrag/internal/config"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

var statusNames = [...]string{StatusPass: "PASS", StatusWarn: "WARN", StatusFail: "FAIL"}

func (s CheckStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// MarshalText encodes the status as its lowercase name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult is the outcome of one named check. A failed Required check
// means studyrag cannot index or answer questions until it is fixed.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports a failed required check.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

func pass(name, msg string, required bool) CheckResult {
	return CheckResult{Name: name, Status: StatusPass, Message: msg, Required: required}
}

// Checker runs the environment and index checks behind `studyrag doctor`.
type Checker struct {
	cfg       *config.Config
	configErr error
	verbose   bool
	output    io.Writer
}

type Option func(*Checker)

// WithConfigError records a configuration load failure. CheckConfig
// reports it while the remaining checks run against defaults.
func WithConfigError(err error) Option {
	return func(c *Checker) { c.configErr = err }
}

// WithVerbose prints result details under each line.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// New creates a Checker for cfg. A nil cfg checks the defaults.
func New(cfg *config.Config, opts ...Option) *Checker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	c := &Checker{cfg: cfg, output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DataDir returns the data directory under check.
func (c *Checker) DataDir() string {
	return c.cfg.Paths.DataDir
}

// RunAll runs every check in a fixed order. A cancelled ctx stops before
// the next check and appends a "cancelled" warning.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	dir := c.DataDir()
	checks := []func() CheckResult{
		c.CheckConfig,
		func() CheckResult { return c.CheckDiskSpace(dir) },
		func() CheckResult { return c.CheckWritePermissions(dir) },
		c.CheckFileDescriptors,
		func() CheckResult { return c.CheckDataDirLock(dir) },
		func() CheckResult { return c.CheckVectorIndex(dir) },
		func() CheckResult { return c.CheckKeywordIndex(dir) },
	}

	results := make([]CheckResult, 0, len(checks)+1)
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, check())
	}
	if err := ctx.Err(); err != nil {
		results = append(results, CheckResult{Name: "cancelled", Status: StatusWarn, Message: err.Error()})
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	return len(split(results).errors) > 0
}

// SummaryStatus is "failed" when a required check failed,
// "ready_with_warnings" when anything else did not pass, else "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	g := split(results)
	switch {
	case len(g.errors) > 0:
		return "failed"
	case len(g.warnings) > 0:
		return "ready_with_warnings"
	default:
		return "ready"
	}
}

type grouped struct {
	errors, warnings []CheckResult
}

// split separates critical failures from everything else that did not pass.
func split(results []CheckResult) grouped {
	var g grouped
	for _, r := range results {
		switch {
		case r.IsCritical():
			g.errors = append(g.errors, r)
		case r.Status != StatusPass:
			g.warnings = append(g.warnings, r)
		}
	}
	return g
}

// PrintResults writes a plain-text report of results.
func (c *Checker) PrintResults(results []CheckResult) {
	w := c.output
	_, _ = fmt.Fprintf(w, "studyrag doctor\ndata directory: %s\n\n", c.DataDir())

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(w, "       %s\n", r.Details)
		}
	}
	_, _ = fmt.Fprintf(w, "\nStatus: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	g := split(results)
	printGroup(w, "error(s)", g.errors)
	printGroup(w, "warning(s)", g.warnings)
}

func printGroup(w io.Writer, label string, rs []CheckResult) {
	if len(rs) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%d %s:\n", len(rs), label)
	for _, r := range rs {
		_, _ = fmt.Fprintf(w, "  - %s: %s\n", r.Name, r.Message)
	}
}

// CheckConfig reports a load failure or a failed validation.
func (c *Checker) CheckConfig() CheckResult {
	err := c.configErr
	if err == nil {
		err = c.cfg.Validate()
	}
	if err != nil {
		return CheckResult{
			Name:     "config",
			Status:   StatusFail,
			Message:  err.Error(),
			Details:  "Run 'studyrag config show' to inspect the effective configuration",
			Required: true,
		}
	}
	return pass("config", "OK", true)
}

// CheckWritePermissions creates and removes a temp file in path, or in
// its nearest existing parent when path has not been created yet.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	dir := existingAncestor(path)
	f, err := os.CreateTemp(dir, ".studyrag-preflight-*")
	if err != nil {
		return CheckResult{
			Name:     "write_permissions",
			Status:   StatusFail,
			Message:  fmt.Sprintf("permission denied: %v", err),
			Required: true,
		}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	r := pass("write_permissions", "OK", true)
	if dir != path {
		r.Details = fmt.Sprintf("%s will be created under %s", path, dir)
	}
	return r
}

func existingAncestor(path string) string {
	for {
		_, err := os.Stat(path)
		if !errors.Is(err, fs.ErrNotExist) {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
