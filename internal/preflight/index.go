package preflight

import (
	"errors"
	"fmt"
	"os"

	"github.com/Aman-CERP/studyrag/internal/store"
)

// CheckDataDirLock reports whether another process holds the data
// directory. A held lock is a warning: `studyrag serve` holds it on purpose.
func (c *Checker) CheckDataDirLock(dataDir string) CheckResult {
	result := CheckResult{
		Name:     "data_dir_lock",
		Required: false,
	}

	if _, err := os.Stat(dataDir); errors.Is(err, os.ErrNotExist) {
		result.Status = StatusPass
		result.Message = "not created yet"
		return result
	}

	lock, err := store.LockDataDir(dataDir)
	if err != nil {
		if errors.Is(err, store.ErrDataDirLocked) {
			result.Status = StatusWarn
			result.Message = "held by another studyrag process"
			result.Details = "Commands that open the indexes will fail until it exits"
			return result
		}
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot lock: %v", err)
		return result
	}
	_ = lock.Unlock()

	result.Status = StatusPass
	result.Message = "free"
	return result
}

// CheckVectorIndex checks that a persisted vector graph matches the
// configured embedding dimensions.
func (c *Checker) CheckVectorIndex(dataDir string) CheckResult {
	result := CheckResult{
		Name:     "vector_index",
		Required: true,
	}

	path := store.VectorIndexPath(dataDir)
	if _, err := os.Stat(path); err != nil {
		result.Status = StatusPass
		result.Message = "no index yet"
		return result
	}

	dims := c.cfg.Embeddings.Dimensions
	stored, err := store.ReadHNSWStoreDimensions(path)
	switch {
	case err != nil:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unreadable metadata: %v", err)
		result.Details = "Delete the data directory and re-index"
	case stored != 0 && stored != dims:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("built with %d dimensions, configured %d", stored, dims)
		result.Details = fmt.Sprintf("Set embeddings.dimensions to %d or re-index every document", stored)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d dimensions", dims)
	}
	return result
}

// CheckKeywordIndex compares the keyword backend on disk with the
// configured one. The engine keeps the one on disk, so a mismatch warns.
func (c *Checker) CheckKeywordIndex(dataDir string) CheckResult {
	result := CheckResult{
		Name:     "keyword_index",
		Required: false,
	}

	configured := c.cfg.Search.KeywordBackend
	detected := store.DetectBM25Backend(store.KeywordIndexBase(dataDir))
	switch {
	case detected == "":
		result.Status = StatusPass
		result.Message = "no index yet (" + configured + ")"
	case string(detected) != configured:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("on disk: %s, configured: %s; using %s", detected, configured, detected)
		result.Details = "Delete the data directory and re-index to switch backends"
	default:
		result.Status = StatusPass
		result.Message = configured
	}
	return result
}
