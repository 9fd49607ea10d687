package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/studyrag/pkg/merge"
)

func TestBuildContext(t *testing.T) {
	cands := []merge.Candidate{
		{Content: "alpha"},
		{Content: "beta"},
		{Content: "gamma"},
	}
	sep := len(ContextSeparator)

	tests := []struct {
		name     string
		maxChars int
		want     string
		used     int
	}{
		{"unbounded", 0, "alpha" + ContextSeparator + "beta" + ContextSeparator + "gamma", 3},
		{"exact fit for two", 5 + sep + 4, "alpha" + ContextSeparator + "beta", 2},
		{"one short of two", 5 + sep + 3, "alpha", 1},
		{"first passage truncated", 3, "alp", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, used := BuildContext(cands, tt.maxChars)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.used, used)
			if tt.maxChars > 0 {
				assert.LessOrEqual(t, len(got), tt.maxChars)
			}
		})
	}
}

func TestBuildContext_Empty(t *testing.T) {
	got, used := BuildContext(nil, 100)

	assert.Empty(t, got)
	assert.Zero(t, used)
}

func TestBuildContext_TruncatesOnRuneBoundary(t *testing.T) {
	// "ééé" is six bytes; a five-byte budget must not split the third rune
	got, used := BuildContext([]merge.Candidate{{Content: "ééé"}}, 5)

	assert.Equal(t, "éé", got)
	assert.Equal(t, 1, used)
}

func TestBuildPrompt(t *testing.T) {
	results := []Result{
		{Page: 3, Section: "Respiration"},
		{Page: 7},
	}

	prompt, err := BuildPrompt("Where is ATP made?", "ctx block", results)

	require.NoError(t, err)
	assert.Contains(t, prompt, "Study material:\nctx block\n")
	assert.Contains(t, prompt, "[1] p. 3 (Respiration)\n[2] p. 7\n")
	assert.True(t, strings.HasSuffix(prompt, "Question: Where is ATP made?\nAnswer:"))
}

func TestBuildPrompt_NoSources(t *testing.T) {
	prompt, err := BuildPrompt("Anything?", "", nil)

	require.NoError(t, err)
	assert.Contains(t, prompt, "Sources, in the order above:\n\nQuestion: Anything?")
}
