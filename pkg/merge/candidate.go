package merge

import "math"

// Source identifies which retrieval source produced a candidate.
type Source string

const (
	SourceVector  Source = "vector"
	SourceKeyword Source = "keyword"
)

// Well-known metadata keys carried by candidates.
const (
	MetaPage       = "page"
	MetaSection    = "section"
	MetaDocumentID = "document_id"
	MetaPassageID  = "passage_id"
)

// Candidate is one retrieved passage with a relevance score.
//
// Content is the de-duplication key: two candidates are the same passage
// iff their Content strings are equal. Metadata passes through untouched.
type Candidate struct {
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Source   Source            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate reports why c cannot enter a merge, or nil.
// Content is compared byte for byte, so only "" is empty.
func (c Candidate) Validate() error {
	if c.Content == "" {
		return &InvalidCandidateError{Index: -1, Reason: ReasonEmptyContent}
	}
	if math.IsNaN(c.Score) {
		return &InvalidCandidateError{Index: -1, Reason: ReasonNaNScore}
	}
	if math.IsInf(c.Score, 0) {
		return &InvalidCandidateError{Index: -1, Reason: ReasonInfiniteScore}
	}
	return nil
}

// Meta returns the metadata value for key, or "" when absent.
func (c Candidate) Meta(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// Sanitize splits cands into valid candidates and the number dropped.
// Order of the kept candidates is preserved.
func Sanitize(cands []Candidate) ([]Candidate, int) {
	kept := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Validate() != nil {
			continue
		}
		kept = append(kept, c)
	}
	return kept, len(cands) - len(kept)
}

// validateAll checks every candidate and tags the first failure with its
// source and position.
func validateAll(src Source, cands []Candidate) error {
	for i, c := range cands {
		if err := c.Validate(); err != nil {
			ice := err.(*InvalidCandidateError)
			ice.Source = src
			ice.Index = i
			return ice
		}
	}
	return nil
}
