// Package configs embeds the starter configuration written by
// `studyrag init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults
//  2. User config (~/.config/studyrag/config.yaml)
//  3. Project config (.studyrag.yaml)
//  4. .env entries
//  5. Environment variables (STUDYRAG_*)
package configs

import _ "embed"

// ProjectConfigTemplate is written to .studyrag.yaml by `studyrag init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
