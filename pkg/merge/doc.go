// Package merge combines vector and keyword retrieval results into one
// ranked, de-duplicated candidate list used to ground an answer.
//
// Candidates from both sources are concatenated (vector first), collapsed
// by exact content, stable-sorted by score descending and optionally
// truncated:
//
//	merged, err := merge.HybridMerge(vectorResults, keywordResults, 5)
//
// The duplicate policy and score normalization are named strategies:
//
//	m, _ := merge.New(
//	    merge.WithDuplicatePolicy(merge.MaxScore),
//	    merge.WithNormalizer(merge.MinMaxNormalizer{}),
//	)
//	merged, err := m.Merge(vectorResults, keywordResults, 0)
//
// # Strict Inputs
//
// A candidate with empty content or a non-finite score fails the whole
// merge with [ErrInvalidCandidate]. Callers that prefer a lenient
// pipeline filter first with [Sanitize].
//
// # Thread Safety
//
// Merging touches no shared state. A [Merger] is immutable after New and
// may be used from many goroutines.
package merge
