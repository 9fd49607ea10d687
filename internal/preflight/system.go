package preflight

import (
	"fmt"
	"syscall"

	"github.com/dustin/go-humanize"
)

// Disk thresholds for the data directory. A textbook of a few hundred
// pages indexes into tens of megabytes across the catalog, keyword index
// and vector graph.
const (
	MinDiskSpaceBytes  = 64 << 20
	WarnDiskSpaceBytes = 512 << 20
)

// MinFileDescriptors covers the catalog, both indexes, the lock file and
// the watcher with room for HTTP connections under `serve`.
const MinFileDescriptors = 256

// CheckDiskSpace reports free space on the volume holding path.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var st syscall.Statfs_t
	if err := syscall.Statfs(existingAncestor(path), &st); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot stat volume: %v", err)
		return result
	}

	free := st.Bavail * uint64(st.Bsize)
	result.Message = humanize.IBytes(free) + " free"

	switch {
	case free < MinDiskSpaceBytes:
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Indexing needs at least %s; free space or move paths.data_dir", humanize.IBytes(MinDiskSpaceBytes))
	case free < WarnDiskSpaceBytes:
		result.Status = StatusWarn
		result.Details = "Large documents may not fit"
	default:
		result.Status = StatusPass
	}
	return result
}

// CheckFileDescriptors reports the soft open-file limit.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read open-file limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("limit %d", lim.Cur)
	if lim.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Raise it to at least %d with 'ulimit -n %d'", MinFileDescriptors, MinFileDescriptors*4)
		return result
	}
	result.Status = StatusPass
	return result
}
