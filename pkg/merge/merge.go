package merge

import (
	"errors"
	"sort"
)

// ErrUnknownPolicy is returned by New for a policy outside the known set.
var ErrUnknownPolicy = errors.New("unknown duplicate policy")

// ErrNilNormalizer is returned by New when WithNormalizer(nil) is passed.
var ErrNilNormalizer = errors.New("normalizer is required")

// Merger merges vector and keyword candidates under a fixed duplicate
// policy and normalization. The zero value is not usable; call New.
type Merger struct {
	policy     DuplicatePolicy
	normalizer Normalizer
}

// Option configures a Merger.
type Option func(*Merger)

// WithDuplicatePolicy sets the duplicate policy (default VectorPriority).
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(m *Merger) {
		m.policy = p
	}
}

// WithNormalizer sets per-source score normalization (default none).
func WithNormalizer(n Normalizer) Option {
	return func(m *Merger) {
		m.normalizer = n
	}
}

// New creates a Merger.
//
// Returns ErrUnknownPolicy or ErrNilNormalizer on bad options.
func New(opts ...Option) (*Merger, error) {
	m := &Merger{
		policy:     DefaultDuplicatePolicy,
		normalizer: NoNormalizer{},
	}

	for _, opt := range opts {
		opt(m)
	}

	if !m.policy.Valid() {
		return nil, ErrUnknownPolicy
	}
	if m.normalizer == nil {
		return nil, ErrNilNormalizer
	}

	return m, nil
}

// defaultMerger backs HybridMerge.
var defaultMerger = &Merger{policy: DefaultDuplicatePolicy, normalizer: NoNormalizer{}}

// HybridMerge merges with vector priority and no normalization.
// A limit <= 0 returns every de-duplicated candidate.
func HybridMerge(vector, keyword []Candidate, limit int) ([]Candidate, error) {
	return defaultMerger.Merge(vector, keyword, limit)
}

// Policy returns the configured duplicate policy.
func (m *Merger) Policy() DuplicatePolicy {
	return m.policy
}

// Normalizer returns the configured normalizer.
func (m *Merger) Normalizer() Normalizer {
	return m.normalizer
}

// Merge combines both candidate lists into one ranked list.
//
// Every candidate is validated before any work is done; the first
// invalid one aborts the merge with an error matching ErrInvalidCandidate.
// Candidates with an empty Source are tagged with the list they came from.
// The result is never nil.
func (m *Merger) Merge(vector, keyword []Candidate, limit int) ([]Candidate, error) {
	if err := validateAll(SourceVector, vector); err != nil {
		return nil, err
	}
	if err := validateAll(SourceKeyword, keyword); err != nil {
		return nil, err
	}

	vector = m.normalizer.Normalize(vector)
	keyword = m.normalizer.Normalize(keyword)

	merged := make([]Candidate, 0, len(vector)+len(keyword))
	seen := make(map[string]int, len(vector)+len(keyword))

	collect := func(src Source, cands []Candidate) {
		for _, c := range cands {
			if c.Source == "" {
				c.Source = src
			}
			if at, ok := seen[c.Content]; ok {
				// Replacement keeps the first-seen position for tie-breaks.
				if m.policy.replaces(merged[at], c) {
					merged[at] = c
				}
				continue
			}
			seen[c.Content] = len(merged)
			merged = append(merged, c)
		}
	}
	collect(SourceVector, vector)
	collect(SourceKeyword, keyword)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return merged, nil
}
