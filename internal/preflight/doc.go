// Package preflight checks that studyrag can run against a data directory:
//
//   - Configuration validity
//   - Disk space on the data directory's volume (minimum 100MB)
//   - Write permissions in the data directory
//   - File descriptor limits (minimum 1024)
//   - Whether another process holds the data directory
//   - Index compatibility with the configured embedding dimensions and
//     keyword backend
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(cfg)
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
