package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// BM25Backend represents the keyword index backend type.
type BM25Backend string

const (
	// BM25BackendBleve uses Bleve v2 (default). Single process only:
	// BoltDB holds an exclusive file lock.
	BM25BackendBleve BM25Backend = "bleve"

	// BM25BackendSQLite uses SQLite FTS5. WAL mode allows a second
	// process to read while the server is running.
	BM25BackendSQLite BM25Backend = "sqlite"
)

// ValidBM25Backends lists the accepted backend names.
var ValidBM25Backends = []string{string(BM25BackendBleve), string(BM25BackendSQLite)}

// NewBM25IndexWithBackend creates a BM25Index using the named backend.
// basePath has no extension; ".bleve" or ".db" is added per backend.
// If basePath is empty, creates an in-memory index.
func NewBM25IndexWithBackend(basePath string, config BM25Config, backend string) (BM25Index, error) {
	switch backend {
	case string(BM25BackendBleve), "":
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveBM25Index(path, config)

	case string(BM25BackendSQLite):
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteBM25Index(path, config)

	default:
		return nil, fmt.Errorf("unknown keyword backend: %s (valid options: bleve, sqlite)", backend)
	}
}

// DetectBM25Backend reports which backend an existing index under basePath
// uses, or "" if none exists.
func DetectBM25Backend(basePath string) BM25Backend {
	if dirExists(basePath + ".bleve") {
		return BM25BackendBleve
	}
	if fileExists(basePath + ".db") {
		return BM25BackendSQLite
	}
	return ""
}

// KeywordIndexBase returns the extension-less keyword index path in dataDir.
func KeywordIndexBase(dataDir string) string {
	return filepath.Join(dataDir, "keyword")
}

// VectorIndexPath returns the HNSW graph path in dataDir.
func VectorIndexPath(dataDir string) string {
	return filepath.Join(dataDir, "vectors.hnsw")
}

// CatalogPath returns the passage catalog database path in dataDir.
func CatalogPath(dataDir string) string {
	return filepath.Join(dataDir, "catalog.db")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
