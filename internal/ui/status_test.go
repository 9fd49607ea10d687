package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/telemetry"
)

func sampleStats() StatsInfo {
	return StatsInfo{
		EngineStats: &search.EngineStats{
			Documents:    2,
			Passages:     41,
			Terms:        910,
			DataDir:      "/home/student/.studyrag",
			KeywordIndex: "bleve",
			Queries: &telemetry.QuerySnapshot{
				TotalQueries:    4,
				ZeroResultCount: 1,
				DocumentCounts:  map[string]int64{"bio": 3, "chem": 1},
				TopTerms:        []telemetry.TermCount{{Term: "enzyme", Count: 2}, {Term: "osmosis", Count: 1}},
				OutcomeCounts: map[telemetry.Outcome]int64{
					telemetry.OutcomeOK:       3,
					telemetry.OutcomeDegraded: 1,
				},
			},
		},
		StorageSize: 3 * 1024 * 1024,
		LastIndexed: time.Now().Add(-2 * time.Hour),
	}
}

func TestStatsRenderer_Render(t *testing.T) {
	// Given: stats for two documents
	buf := &bytes.Buffer{}
	r := NewStatsRenderer(buf, true)

	// When: rendering
	require.NoError(t, r.Render(sampleStats()))

	// Then: corpus, storage and query lines are present
	out := buf.String()
	assert.Contains(t, out, "studyrag: /home/student/.studyrag")
	assert.Contains(t, out, "Documents:    2")
	assert.Contains(t, out, "Passages:     41")
	assert.Contains(t, out, "Last indexed: 2 hours ago")
	assert.Contains(t, out, "Keyword index: bleve")
	assert.Contains(t, out, "Total:         3.0 MiB")
	assert.Contains(t, out, "Degraded: 1")
	assert.Contains(t, out, "Failed:   0")
	assert.Contains(t, out, "No hits:  25%")
	assert.Contains(t, out, "Asked:    bio (3), chem (1)")
	assert.Contains(t, out, "Terms:    enzyme, osmosis")
}

func TestStatsRenderer_NoQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	info := sampleStats()
	info.Queries = nil

	require.NoError(t, NewStatsRenderer(buf, true).Render(info))

	assert.NotContains(t, buf.String(), "Queries")
}

func TestStatsRenderer_NilStats(t *testing.T) {
	assert.Error(t, NewStatsRenderer(&bytes.Buffer{}, true).Render(StatsInfo{}))
}

func TestStatsRenderer_RenderJSON(t *testing.T) {
	// Given: stats
	buf := &bytes.Buffer{}

	// When: rendering JSON
	require.NoError(t, NewStatsRenderer(buf, true).RenderJSON(sampleStats()))

	// Then: embedded fields are flattened
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(2), decoded["documents"])
	assert.Equal(t, float64(3*1024*1024), decoded["storage_size"])
	assert.Equal(t, "bleve", decoded["keyword_index"])
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{-1, "0 B"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{2 * 1024 * 1024 * 1024, "2.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "now", formatTime(time.Now()))
	assert.Equal(t, "1 minute ago", formatTime(time.Now().Add(-90*time.Second)))
	assert.Equal(t, "3 days ago", formatTime(time.Now().Add(-73*time.Hour)))
}
