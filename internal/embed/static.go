package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// StaticEmbedder hashes word stems and character trigrams into a fixed
// number of buckets. It is deterministic and fully offline. It rewards
// shared vocabulary ("proteins" and "protein" share a stem) rather than
// meaning, which is enough to rank passages of one study document.
type StaticEmbedder struct {
	dimensions int
	closed     atomic.Bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// questionWords carry no topic and are common in study questions.
var questionWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {},
	"in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "that": {},
	"the": {}, "this": {}, "to": {}, "was": {}, "were": {}, "what": {},
	"why": {}, "with": {},
}

const (
	stemWeight    = 0.7
	trigramWeight = 0.3
)

// NewStaticEmbedder creates an embedder producing dims-sized vectors, or
// StaticDimensions when dims <= 0.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dimensions: dims}
}

// Embed returns the unit vector for text. Blank text gives a zero vector.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.closed.Load() {
		return nil, fmt.Errorf("embedder is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimensions)
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return vec, nil
	}

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, skip := questionWords[w]; skip {
			continue
		}
		vec[e.bucket("w:"+porterstemmer.StemString(w))] += stemWeight
	}
	for _, g := range runeGrams([]rune(strings.Join(words, "")), 3) {
		vec[e.bucket(g)] += trigramWeight
	}
	return normalizeVector(vec), nil
}

func (e *StaticEmbedder) bucket(feature string) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(feature))
	return int(h.Sum64() % uint64(e.dimensions))
}

// runeGrams returns every n-rune window of runes.
func runeGrams(runes []rune, n int) []string {
	if len(runes) < n {
		return nil
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *StaticEmbedder) Dimensions() int { return e.dimensions }

// ModelName identifies the vector space; it changes with the dimensions.
func (e *StaticEmbedder) ModelName() string {
	return fmt.Sprintf("static-%d", e.dimensions)
}

func (e *StaticEmbedder) Available(context.Context) bool { return !e.closed.Load() }

func (e *StaticEmbedder) Close() error {
	e.closed.Store(true)
	return nil
}
