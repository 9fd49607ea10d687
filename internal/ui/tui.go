package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/studyrag/internal/search"
)

// TUIRenderer provides a rich terminal UI using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *ingestModel
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails for non-TTY output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	model := newIngestModel(cfg.Document)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:   cfg,
		model: model,
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	opts = append(opts, tea.WithContext(ctx))

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event search.ProgressEvent) {
	r.send(progressMsg(event))
}

// Fail implements Renderer.
func (r *TUIRenderer) Fail(err error) {
	r.send(failMsg{err: err})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(msg)
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}

	// Let the final frame render before quitting.
	select {
	case <-r.done:
	case <-time.After(200 * time.Millisecond):
		r.program.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

// Message types for bubbletea
type progressMsg search.ProgressEvent
type completeMsg CompletionStats
type failMsg struct{ err error }

// ingestModel is the bubbletea model for ingestion progress.
type ingestModel struct {
	document    string
	stage       search.Stage
	done        int
	total       int
	width       int
	quitting    bool
	complete    bool
	err         error
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
}

func newIngestModel(document string) *ingestModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &ingestModel{
		document:    document,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		width:       80,
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-24, 20)

	case progressMsg:
		if msg.Stage != search.StageComplete {
			m.stage = msg.Stage
		}
		m.done = msg.Done
		m.total = msg.Total

	case failMsg:
		m.err = msg.err
		return m, tea.Quit

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	switch {
	case m.quitting:
		return "Cancelled.\n"
	case m.err != nil:
		return m.styles.Error.Render("✗ "+m.err.Error()) + "\n"
	case m.complete:
		return m.renderComplete()
	}

	title := "studyrag index"
	if m.document != "" {
		title += " • " + m.document
	}

	lines := []string{
		m.styles.Header.Render(title),
		m.renderStages(),
		m.renderProgress(),
		m.styles.Dim.Render("q to quit"),
	}
	return strings.Join(lines, "\n") + "\n"
}

// renderStages renders the pipeline stage indicators.
func (m *ingestModel) renderStages() string {
	current := stageRank(m.stage)

	parts := make([]string, 0, len(pipeline))
	for i, s := range pipeline {
		var icon string
		var style lipgloss.Style
		switch {
		case i < current:
			icon, style = "●", m.styles.Success
		case i == current:
			icon, style = m.spinner.View(), m.styles.Active
		default:
			icon, style = "○", m.styles.Dim
		}
		parts = append(parts, style.Render(icon+" "+StageLabel(s)))
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

// renderProgress renders the progress bar with percentage.
func (m *ingestModel) renderProgress() string {
	if m.total == 0 {
		return m.styles.Dim.Render("Preparing...")
	}
	percent := float64(m.done) / float64(m.total)
	bar := m.progressBar.ViewAs(percent)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", percent*100))
	count := m.styles.Label.Render(fmt.Sprintf("%d / %d passages", m.done, m.total))
	return fmt.Sprintf("%s  %s\n%s", bar, pct, count)
}

// renderComplete renders the completion summary.
func (m *ingestModel) renderComplete() string {
	if m.stats.Unchanged {
		return m.styles.Success.Render("✓ "+m.stats.DocumentID+" is unchanged") +
			m.styles.Dim.Render(" (use --force to re-index)") + "\n"
	}

	lines := []string{
		m.styles.Success.Render("✓ Indexed " + m.stats.DocumentID),
		"",
		fmt.Sprintf("%s    %s", m.styles.Label.Render("Pages:"), m.styles.Active.Render(fmt.Sprint(m.stats.Pages))),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Passages:"), m.styles.Active.Render(fmt.Sprint(m.stats.Passages))),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Duration:"), m.styles.Active.Render(formatDuration(m.stats.Duration))),
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorLime)).
		Padding(0, 2).
		Width(max(min(m.width-4, 60), 30))
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

var _ Renderer = (*TUIRenderer)(nil)
