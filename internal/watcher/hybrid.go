package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// HybridWatcher watches one study document. It listens with fsnotify on
// the document's directory and polls the file instead when fsnotify is
// unavailable or ForcePolling is set.
type HybridWatcher struct {
	src       source
	debouncer *Debouncer
	events    chan FileEvent
	errors    chan error
	logger    *slog.Logger
	dropped   atomic.Uint64

	mu      sync.RWMutex
	path    string
	cancel  context.CancelFunc
	stopped bool
}

var _ Watcher = (*HybridWatcher)(nil)

// source reports raw operations on one file.
type source interface {
	// watch blocks until ctx is done or the source can no longer run.
	watch(ctx context.Context, path string, emit func(Operation), fail func(error)) error
	close() error
	kind() string
}

// NewHybridWatcher creates a watcher with opts, filling zero values from
// DefaultOptions.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()
	logger := slog.Default()

	return &HybridWatcher{
		src:       pickSource(opts, logger),
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		logger:    logger,
	}, nil
}

func pickSource(opts Options, logger *slog.Logger) source {
	if !opts.ForcePolling {
		src, err := newNotifySource()
		if err == nil {
			return src
		}
		logger.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
	}
	return &pollSource{interval: opts.PollInterval}
}

// Start watches path until ctx is cancelled, returning ctx.Err(), or until
// Stop is called, returning nil.
func (h *HybridWatcher) Start(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.path = abs
	h.cancel = cancel
	h.mu.Unlock()

	go h.forward(runCtx)
	h.logger.Debug("watcher_started",
		slog.String("path", abs),
		slog.String("type", h.src.kind()))

	err = h.src.watch(runCtx, abs, func(op Operation) {
		h.debouncer.Add(FileEvent{Path: abs, Operation: op, Timestamp: time.Now()})
	}, h.emitError)

	if ctx.Err() != nil {
		_ = h.Stop()
		return ctx.Err()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *HybridWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			h.emitEvent(ev)
		}
	}
}

func (h *HybridWatcher) emitEvent(ev FileEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	select {
	case h.events <- ev:
	default:
		n := h.dropped.Add(1)
		h.logger.Warn("watch_event_dropped",
			slog.String("op", ev.Operation.String()),
			slog.Uint64("total_dropped", n))
	}
}

func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
	}
}

// Stop ends a running Start, drops any pending event and closes both
// channels. Later calls do nothing.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true

	if h.cancel != nil {
		h.cancel()
	}
	h.debouncer.Stop()
	err := h.src.close()
	close(h.events)
	close(h.errors)
	return err
}

func (h *HybridWatcher) Events() <-chan FileEvent { return h.events }

func (h *HybridWatcher) Errors() <-chan error { return h.errors }

// DroppedEvents counts events lost to a full Events buffer.
func (h *HybridWatcher) DroppedEvents() uint64 {
	return h.dropped.Load()
}

// WatcherType returns "fsnotify" or "polling".
func (h *HybridWatcher) WatcherType() string {
	return h.src.kind()
}

// Path returns the absolute path passed to Start.
func (h *HybridWatcher) Path() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.path
}
