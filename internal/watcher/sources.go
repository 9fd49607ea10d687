package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// notifySource subscribes to the file's parent directory, so an editor
// that saves by renaming a temp file over the document is still seen.
type notifySource struct {
	w *fsnotify.Watcher
}

func newNotifySource() (*notifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &notifySource{w: w}, nil
}

func (s *notifySource) kind() string { return "fsnotify" }

func (s *notifySource) close() error { return s.w.Close() }

func (s *notifySource) watch(ctx context.Context, path string, emit func(Operation), fail func(error)) error {
	dir := filepath.Dir(path)
	if err := s.w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if op, ok := operationOf(ev.Op); ok {
				emit(op)
			}
		case err, ok := <-s.w.Errors:
			if !ok {
				return nil
			}
			fail(err)
		}
	}
}

func operationOf(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpModify, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete, true
	}
	return 0, false
}

// pollSource stats the file every interval and compares size and
// modification time. Used on mounts where fsnotify reports nothing.
type pollSource struct {
	interval time.Duration
}

func (p *pollSource) kind() string { return "polling" }

func (p *pollSource) close() error { return nil }

func (p *pollSource) watch(ctx context.Context, path string, emit func(Operation), fail func(error)) error {
	last, err := statFile(path)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cur, err := statFile(path)
			if err != nil {
				fail(err)
				continue
			}
			if op, changed := last.diff(cur); changed {
				emit(op)
			}
			last = cur
		}
	}
}

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

// statFile treats a missing file as a valid, absent state.
func statFile(path string) (fileState, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fileState{}, nil
	case err != nil:
		return fileState{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}, nil
}

func (prev fileState) diff(cur fileState) (Operation, bool) {
	switch {
	case !prev.exists && cur.exists:
		return OpCreate, true
	case prev.exists && !cur.exists:
		return OpDelete, true
	case cur.exists && (cur.size != prev.size || !cur.modTime.Equal(prev.modTime)):
		return OpModify, true
	}
	return 0, false
}
