package ui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Aman-CERP/studyrag/internal/search"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	last search.ProgressEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer. Repeated events are printed once.
func (r *PlainRenderer) UpdateProgress(event search.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event == r.last || event.Stage == search.StageComplete {
		return
	}
	r.last = event
	_, _ = fmt.Fprintf(r.out, "[%s] %d/%d passages\n", StageIcon(event.Stage), event.Done, event.Total)
}

// Fail implements Renderer.
func (r *PlainRenderer) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, "ERROR: %v\n", err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stats.Unchanged {
		_, _ = fmt.Fprintf(r.out, "Unchanged: %s is already indexed (use --force to re-index)\n", stats.DocumentID)
		return
	}
	_, _ = fmt.Fprintf(r.out, "Indexed %s: %d pages, %d passages in %s\n",
		stats.DocumentID, stats.Pages, stats.Passages, formatDuration(stats.Duration))
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
