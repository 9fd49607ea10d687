package watcher

import (
	"context"
	"time"
)

// Operation is what happened to the watched document.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	// OpDelete also covers a rename away from the watched path.
	OpDelete
)

var operationNames = [...]string{OpCreate: "CREATE", OpModify: "MODIFY", OpDelete: "DELETE"}

func (op Operation) String() string {
	if op < 0 || int(op) >= len(operationNames) {
		return "UNKNOWN"
	}
	return operationNames[op]
}

// FileEvent is one debounced change to the watched document.
type FileEvent struct {
	Path      string
	Operation Operation
	// Timestamp is when the last raw event of the burst arrived.
	Timestamp time.Time
}

// Watcher reports changes to one file.
type Watcher interface {
	// Start blocks while watching path; run it in its own goroutine.
	Start(ctx context.Context, path string) error
	Stop() error
	// Events and Errors are closed once the watcher stops.
	Events() <-chan FileEvent
	Errors() <-chan error
}

// Options tunes a HybridWatcher. Zero values take the defaults.
type Options struct {
	// DebounceWindow is the quiet period that ends a burst (500ms).
	DebounceWindow time.Duration
	// PollInterval applies only when polling (2s).
	PollInterval time.Duration
	// EventBufferSize bounds undelivered events; more are dropped (16).
	EventBufferSize int
	ForcePolling    bool
}

func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    2 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults replaces non-positive fields with DefaultOptions values.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = d.EventBufferSize
	}
	return o
}
