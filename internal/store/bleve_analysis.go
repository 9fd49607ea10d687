package store

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

// Names under which the passage analysis is registered with bleve.
const (
	ProseTokenizerName  = "prose_tokenizer"
	ProseStopFilterName = "prose_stop"
	ProseAnalyzerName   = "prose_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(ProseTokenizerName,
		func(map[string]any, *registry.Cache) (analysis.Tokenizer, error) {
			return proseTokenizer{}, nil
		})
	_ = registry.RegisterTokenFilter(ProseStopFilterName,
		func(map[string]any, *registry.Cache) (analysis.TokenFilter, error) {
			return stopFilter(BuildStopWordMap(DefaultProseStopWords)), nil
		})
}

// passageMapping indexes content through the prose analyzer (words,
// lowercase, stop words, Porter stems) and document_id as one exact term
// used to scope searches.
func passageMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(ProseAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     ProseTokenizerName,
		"token_filters": []string{lowercase.Name, ProseStopFilterName, porter.Name},
	}); err != nil {
		return nil, fmt.Errorf("register %s: %w", ProseAnalyzerName, err)
	}

	content := bleve.NewTextFieldMapping()
	content.Analyzer = ProseAnalyzerName
	content.Store = false

	scope := bleve.NewKeywordFieldMapping()
	scope.Store = false

	passage := bleve.NewDocumentMapping()
	passage.AddFieldMappingsAt(fieldContent, content)
	passage.AddFieldMappingsAt(fieldDocumentID, scope)

	m.DefaultMapping = passage
	m.DefaultAnalyzer = ProseAnalyzerName
	return m, nil
}

// proseTokenizer emits the words found by TokenizeText with their byte
// offsets in the original text, so hit locations line up with passages.
type proseTokenizer struct{}

func (proseTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	lower := strings.ToLower(text)
	words := TokenizeText(text)

	stream := make(analysis.TokenStream, 0, len(words))
	cursor := 0
	for i, w := range words {
		start := cursor
		if at := strings.Index(lower[cursor:], w); at >= 0 {
			start = cursor + at
		}
		end := start + len(w)
		stream = append(stream, &analysis.Token{
			Term:     []byte(w),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		if end <= len(text) {
			cursor = end
		}
	}
	return stream
}

// stopFilter drops tokens whose term is in the set.
type stopFilter map[string]struct{}

func (f stopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	kept := input[:0]
	for _, tok := range input {
		if _, stop := f[string(tok.Term)]; !stop {
			kept = append(kept, tok)
		}
	}
	return kept
}
