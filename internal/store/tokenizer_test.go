package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple sentence", "Cells divide by mitosis.", []string{"cells", "divide", "by", "mitosis"}},
		{"drops single runes", "a b cd", []string{"cd"}},
		{"splits on punctuation", "ATP-synthase, (complex V)", []string{"atp", "synthase", "complex"}},
		{"keeps digits", "World War 2 ended in 1945", []string{"world", "war", "ended", "in", "1945"}},
		{"unicode letters", "Ångström über naïve", []string{"ångström", "über", "naïve"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeText(tt.input))
		})
	}
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap(DefaultProseStopWords)

	got := FilterStopWords([]string{"what", "is", "the", "krebs", "cycle"}, stop)
	assert.Equal(t, []string{"krebs", "cycle"}, got)

	got = FilterStopWords([]string{"The"}, stop)
	assert.Empty(t, got)
}
