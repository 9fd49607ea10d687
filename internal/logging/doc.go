// Package logging configures structured slog output for studyrag.
//
// Logs are JSON lines written to a size-rotated file under
// ~/.studyrag/logs/ and, unless disabled, mirrored to stderr. The MCP
// stdio transport owns stdout, so serve mode uses SetupFileOnly.
package logging
