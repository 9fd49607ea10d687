package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.studyrag/logs, or a temp dir fallback when the
// home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".studyrag", "logs")
	}
	return filepath.Join(home, ".studyrag", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "studyrag.log")
}
