package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces a burst of raw events on the watched file into one
// event, emitted once the file has been quiet for the window:
//   - CREATE + MODIFY = CREATE
//   - CREATE + DELETE = nothing
//   - MODIFY + DELETE = DELETE
//   - DELETE + CREATE = MODIFY (the file was replaced)
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending *FileEvent
	timer   *time.Timer
	output  chan FileEvent
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		output: make(chan FileEvent, 4),
	}
}

// Add records a raw event and restarts the window.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.pending == nil {
		d.pending = &event
	} else {
		d.pending = coalesce(*d.pending, event)
		if d.pending == nil {
			d.stopTimer()
			return
		}
	}

	d.stopTimer()
	d.timer = time.AfterFunc(d.window, d.flush)
}

// coalesce merges the next event into the pending one. It returns nil
// when they cancel out.
func coalesce(pending, next FileEvent) *FileEvent {
	switch {
	case pending.Operation == OpCreate && next.Operation == OpModify:
		pending.Timestamp = next.Timestamp
		return &pending
	case pending.Operation == OpCreate && next.Operation == OpDelete:
		return nil
	case pending.Operation == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return &next
	default:
		return &next
	}
}

func (d *Debouncer) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// flush emits the pending event.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.pending == nil {
		return
	}
	event := *d.pending
	d.pending = nil
	d.timer = nil

	select {
	case d.output <- event:
	default:
		slog.Warn("debouncer output full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}

// Output returns the channel of debounced events.
func (d *Debouncer) Output() <-chan FileEvent {
	return d.output
}

// Stop discards any pending event and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	d.stopTimer()
	d.pending = nil
	close(d.output)
}
