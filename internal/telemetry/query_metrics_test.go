package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	buf := NewCircularBuffer[string](3)
	assert.Empty(t, buf.Items())

	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		buf.Add(q)
	}

	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []string{"q3", "q4", "q5"}, buf.Items())
}

func TestNewCircularBuffer_DefaultCapacity(t *testing.T) {
	buf := NewCircularBuffer[int](0)
	for i := 0; i < 150; i++ {
		buf.Add(i)
	}
	assert.Equal(t, 100, buf.Size())
	assert.Equal(t, 50, buf.Items()[0])
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{499 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.d), tt.d.String())
	}
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"what", "mitochondria"}, ExtractTerms("  What do Mitochondria  "))
	assert.Empty(t, ExtractTerms("a an"))
	assert.Empty(t, ExtractTerms(""))
	assert.Equal(t, []string{"atp", "made"}, ExtractTerms("ATP: made?"))
}

func TestQueryMetrics_CountsQueriesPerDocument(t *testing.T) {
	// Given: questions against two documents and one unscoped question
	m := NewQueryMetrics(0, 0)
	m.Record(QueryEvent{DocumentID: "bio", Query: "osmosis", Outcome: OutcomeOK, ResultCount: 1})
	m.Record(QueryEvent{DocumentID: "bio", Query: "diffusion", Outcome: OutcomeOK, ResultCount: 1})
	m.Record(QueryEvent{DocumentID: "chem", Query: "moles", Outcome: OutcomeOK, ResultCount: 1})
	m.Record(QueryEvent{Query: "invalid", Outcome: OutcomeInvalid})

	// When: taking a snapshot
	s := m.Snapshot()

	// Then: only scoped questions are attributed
	assert.Equal(t, map[string]int64{"bio": 2, "chem": 1}, s.DocumentCounts)
	assert.Equal(t, int64(4), s.TotalQueries)
}

func TestQueryMetrics_RecordAndSnapshot(t *testing.T) {
	// Given: a summary and a mix of queries
	m := NewQueryMetrics(0, 0)
	m.Record(QueryEvent{Query: "photosynthesis light", Outcome: OutcomeOK, ResultCount: 3, Latency: 5 * time.Millisecond})
	m.Record(QueryEvent{Query: "photosynthesis", Outcome: OutcomeDegraded, ResultCount: 0, Latency: 60 * time.Millisecond})
	m.Record(QueryEvent{Query: "quasars", Outcome: OutcomeFailed, Latency: time.Second})

	// When: taking a snapshot
	s := m.Snapshot()

	// Then: counts reflect every event
	assert.Equal(t, int64(3), s.TotalQueries)
	assert.Equal(t, int64(1), s.OutcomeCounts[OutcomeOK])
	assert.Equal(t, int64(1), s.OutcomeCounts[OutcomeDegraded])
	assert.Equal(t, int64(1), s.OutcomeCounts[OutcomeFailed])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP1000])

	// And: failed searches are not zero-result queries
	assert.Equal(t, []string{"photosynthesis"}, s.ZeroResultQueries)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.InDelta(t, 33.33, s.ZeroResultPercentage(), 0.01)

	require.NotEmpty(t, s.TopTerms)
	assert.Equal(t, TermCount{Term: "photosynthesis", Count: 2}, s.TopTerms[0])
}

func TestQueryMetrics_SnapshotIsACopy(t *testing.T) {
	m := NewQueryMetrics(10, 10)
	m.Record(QueryEvent{Query: "cells", Outcome: OutcomeOK, ResultCount: 1})

	s := m.Snapshot()
	s.OutcomeCounts[OutcomeOK] = 99

	assert.Equal(t, int64(1), m.Snapshot().OutcomeCounts[OutcomeOK])
}

func TestQuerySnapshot_ZeroResultPercentage_Empty(t *testing.T) {
	assert.Zero(t, NewQueryMetrics(1, 1).Snapshot().ZeroResultPercentage())
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(10, 10)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record(QueryEvent{Query: "enzymes", Outcome: OutcomeOK, ResultCount: 1})
			_ = m.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.Snapshot().TotalQueries)
}
