package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrDataDirLocked is returned when another process holds the data dir.
var ErrDataDirLocked = errors.New("data directory is locked by another process")

// DataDirLock is a cross-process exclusive lock on a data directory.
// Writers (ingest, delete, serve) hold it.
type DataDirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// LockDataDir acquires the lock on dir without blocking.
// Returns ErrDataDirLocked if another process holds it.
func LockDataDir(dir string) (*DataDirLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lockPath := filepath.Join(dir, ".studyrag.lock")
	l := &DataDirLock{path: lockPath, flock: flock.New(lockPath)}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%s: %w", dir, ErrDataDirLocked)
	}

	l.locked = true
	return l, nil
}

// Unlock releases the lock. Safe to call more than once.
func (l *DataDirLock) Unlock() error {
	if l == nil || !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *DataDirLock) Path() string {
	return l.path
}
