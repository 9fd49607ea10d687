package merge

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides which score survives when the same content is
// returned by both sources.
type DuplicatePolicy string

const (
	// VectorPriority keeps the first-seen entry. Vector results are
	// scanned before keyword results, so the vector score wins.
	VectorPriority DuplicatePolicy = "vector_priority"

	// MaxScore keeps the entry with the higher score regardless of source.
	// Equal scores keep the first-seen entry.
	MaxScore DuplicatePolicy = "max_score"
)

// DefaultDuplicatePolicy is used when none is configured.
const DefaultDuplicatePolicy = VectorPriority

// Valid reports whether p is a known policy.
func (p DuplicatePolicy) Valid() bool {
	return p == VectorPriority || p == MaxScore
}

// replaces reports whether incoming should take the place of existing.
func (p DuplicatePolicy) replaces(existing, incoming Candidate) bool {
	if p == MaxScore {
		return incoming.Score > existing.Score
	}
	return false
}

// ParseDuplicatePolicy parses a policy name. Empty selects the default.
// Hyphens and case are ignored so "max-score" and "MaxScore" parse too.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	key := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch key {
	case "":
		return DefaultDuplicatePolicy, nil
	case "vectorpriority", "vector", "firstseen":
		return VectorPriority, nil
	case "maxscore", "max":
		return MaxScore, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (want %s or %s)", s, VectorPriority, MaxScore)
	}
}
