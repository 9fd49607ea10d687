package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/search"
)

// indexedEnv returns an env with the biology notes indexed as "biology".
func indexedEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	_, err := env.run(t, "index", env.writeNotes(t, "biology.txt"))
	require.NoError(t, err)
	return env
}

func decodeResponse(t *testing.T, out string) search.Response {
	t.Helper()
	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestSearchCmd_TextOutput(t *testing.T) {
	// Given: an indexed document
	env := indexedEnv(t)

	// When: searching with a multi-word query split across args
	out, err := env.run(t, "search", "biology", "enzyme", "active", "site")

	// Then: ranked results are printed with page and source
	require.NoError(t, err)
	assert.Contains(t, out, `results for "enzyme active site"`)
	assert.Contains(t, out, "1. p. ")
	assert.Contains(t, out, "active site")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	env := indexedEnv(t)

	out, err := env.run(t, "search", "biology", "chloroplasts light energy", "-f", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, search.StatusSuccess, resp.Status)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, "biology", r.DocumentID)
		assert.NotEmpty(t, r.PassageID)
	}
}

func TestSearchCmd_ResultsAreUniqueAndOrdered(t *testing.T) {
	// Given: an indexed document where both sources find the same passages
	env := indexedEnv(t)

	// When: searching without a limit cap
	out, err := env.run(t, "search", "biology", "energy", "-n", "-1", "-f", "json", "--normalize", "minmax")
	require.NoError(t, err)
	resp := decodeResponse(t, out)

	// Then: every passage appears once, ordered by score
	seen := map[string]bool{}
	for i, r := range resp.Results {
		assert.False(t, seen[r.Content], "duplicate passage %q", r.Content)
		seen[r.Content] = true
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Results[i-1].Score, r.Score)
		}
	}
}

func TestSearchCmd_LimitFlag(t *testing.T) {
	env := indexedEnv(t)

	out, err := env.run(t, "search", "biology", "energy", "-n", "1", "-f", "json")
	require.NoError(t, err)

	assert.Len(t, decodeResponse(t, out).Results, 1)
}

func TestSearchCmd_SingleSource(t *testing.T) {
	env := indexedEnv(t)

	tests := []struct {
		flag   string
		source string
	}{
		{flag: "--keyword-only", source: "keyword"},
		{flag: "--vector-only", source: "vector"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			out, err := env.run(t, "search", "biology", "glucose respiration", tt.flag, "-f", "json")
			require.NoError(t, err)

			resp := decodeResponse(t, out)
			require.NotEmpty(t, resp.Results)
			for _, r := range resp.Results {
				assert.Equal(t, tt.source, r.Source)
			}
		})
	}
}

func TestSearchCmd_SourceFlagsMutuallyExclusive(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "search", "biology", "energy", "--keyword-only", "--vector-only")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestSearchCmd_Errors(t *testing.T) {
	env := indexedEnv(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{name: "unknown document", args: []string{"search", "chemistry", "acids"}, code: studyerrors.ErrCodeDocumentNotFound},
		{name: "blank query", args: []string{"search", "biology", "   "}, code: studyerrors.ErrCodeQueryEmpty},
		{name: "bad format", args: []string{"search", "biology", "energy", "-f", "xml"}, code: studyerrors.ErrCodeInvalidInput},
		{name: "bad policy", args: []string{"search", "biology", "energy", "--policy", "newest"}, code: studyerrors.ErrCodeConfigInvalid},
		{name: "bad normalization", args: []string{"search", "biology", "energy", "--normalize", "zscore"}, code: studyerrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, studyerrors.GetCode(err))
		})
	}
}

func TestAskCmd_PrintsPrompt(t *testing.T) {
	// Given: an indexed document
	env := indexedEnv(t)

	// When: asking a question
	out, err := env.run(t, "ask", "biology", "What", "does", "an", "enzyme", "do?")

	// Then: the grounded prompt cites pages and ends with the question
	require.NoError(t, err)
	assert.Contains(t, out, "Study material:")
	assert.Contains(t, out, "[1] p. ")
	assert.True(t, strings.Contains(out, "Question: What does an enzyme do?\nAnswer:"), out)
}

func TestAskCmd_JSONOutput(t *testing.T) {
	env := indexedEnv(t)

	out, err := env.run(t, "ask", "biology", "Where does photosynthesis happen?", "-f", "json", "-n", "2")
	require.NoError(t, err)

	var g search.Grounding
	require.NoError(t, json.Unmarshal([]byte(out), &g), out)
	assert.Equal(t, search.StatusSuccess, g.Status)
	assert.Equal(t, "Where does photosynthesis happen?", g.Question)
	assert.NotEmpty(t, g.Context)
	assert.LessOrEqual(t, len(g.Sources), 2)
}

func TestAskCmd_UnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "ask", "biology", "why?")

	require.Error(t, err)
	assert.Equal(t, studyerrors.ErrCodeDocumentNotFound, studyerrors.GetCode(err))
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n  b\n", indent("a\nb\n", "  "))
	assert.Equal(t, "> x\n", indent("x", "> "))
}
