package merge

import (
	"fmt"
	"sort"
	"strings"
)

// Normalization names accepted by ParseNormalization.
const (
	NormalizeNone   = "none"
	NormalizeMinMax = "minmax"
	NormalizeRank   = "rank"
)

// Normalizer rescales the scores of one source's candidates before they
// are merged with the other source. It returns a new slice in the same
// order and never modifies its input.
type Normalizer interface {
	Normalize(cands []Candidate) []Candidate
	Name() string
}

// NoNormalizer leaves scores as returned by the source, so cosine
// similarities and lexical scores are compared directly.
type NoNormalizer struct{}

func (NoNormalizer) Normalize(cands []Candidate) []Candidate {
	return append([]Candidate(nil), cands...)
}

func (NoNormalizer) Name() string { return NormalizeNone }

// MinMaxNormalizer maps scores linearly onto [0, 1] per source.
// A source whose scores are all equal maps every candidate to 1.
type MinMaxNormalizer struct{}

func (MinMaxNormalizer) Normalize(cands []Candidate) []Candidate {
	out := append([]Candidate(nil), cands...)
	if len(out) == 0 {
		return out
	}

	lo, hi := out[0].Score, out[0].Score
	for _, c := range out[1:] {
		lo = min(lo, c.Score)
		hi = max(hi, c.Score)
	}

	span := hi - lo
	for i := range out {
		if span == 0 {
			out[i].Score = 1
			continue
		}
		out[i].Score = (out[i].Score - lo) / span
	}
	return out
}

func (MinMaxNormalizer) Name() string { return NormalizeMinMax }

// RankNormalizer replaces each score with 1 - rank/n, where rank is the
// 0-based position in the source ordered by score descending. Equal raw
// scores share the better rank.
type RankNormalizer struct{}

func (RankNormalizer) Normalize(cands []Candidate) []Candidate {
	out := append([]Candidate(nil), cands...)
	n := len(out)
	if n == 0 {
		return out
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cands[order[a]].Score > cands[order[b]].Score
	})

	rank := 0
	for pos, idx := range order {
		if pos > 0 && cands[idx].Score != cands[order[pos-1]].Score {
			rank = pos
		}
		out[idx].Score = 1 - float64(rank)/float64(n)
	}
	return out
}

func (RankNormalizer) Name() string { return NormalizeRank }

// ParseNormalization returns the normalizer for name. Empty selects none.
func ParseNormalization(name string) (Normalizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NormalizeNone:
		return NoNormalizer{}, nil
	case NormalizeMinMax, "min-max", "min_max":
		return MinMaxNormalizer{}, nil
	case NormalizeRank:
		return RankNormalizer{}, nil
	default:
		return nil, fmt.Errorf("unknown normalization %q (want %s, %s or %s)",
			name, NormalizeNone, NormalizeMinMax, NormalizeRank)
	}
}
