package merge

import (
	"errors"
	"fmt"
)

// ErrInvalidCandidate is the sentinel matched by every candidate
// validation failure. Use errors.Is to detect it and errors.As with
// *InvalidCandidateError for details.
var ErrInvalidCandidate = errors.New("invalid candidate")

// Reasons a candidate is rejected.
const (
	ReasonEmptyContent  = "empty content"
	ReasonNaNScore      = "score is NaN"
	ReasonInfiniteScore = "score is infinite"
)

// InvalidCandidateError describes the first rejected candidate of a merge.
type InvalidCandidateError struct {
	Source Source // Source list, empty when validated standalone
	Index  int    // Position within its source list, -1 when standalone
	Reason string
}

func (e *InvalidCandidateError) Error() string {
	if e.Source == "" || e.Index < 0 {
		return fmt.Sprintf("invalid candidate: %s", e.Reason)
	}
	return fmt.Sprintf("invalid candidate: %s result %d: %s", e.Source, e.Index, e.Reason)
}

// Is lets errors.Is match ErrInvalidCandidate.
func (e *InvalidCandidateError) Is(target error) bool {
	return target == ErrInvalidCandidate
}
