// Package telemetry records search telemetry for studyrag: Prometheus
// metrics for scraping and an in-memory query summary for reporting.
// Nothing leaves the machine unless /metrics is scraped.
package telemetry

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Outcome classifies how a search ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
	OutcomeInvalid  Outcome = "invalid"
)

// LatencyBucket names a coarse latency range, labelled by its upper bound.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"
	BucketP50   LatencyBucket = "p50"
	BucketP100  LatencyBucket = "p100"
	BucketP500  LatencyBucket = "p500"
	BucketP1000 LatencyBucket = "p1000"
)

var latencyBounds = []struct {
	below  time.Duration
	bucket LatencyBucket
}{
	{10 * time.Millisecond, BucketP10},
	{50 * time.Millisecond, BucketP50},
	{100 * time.Millisecond, BucketP100},
	{500 * time.Millisecond, BucketP500},
}

// LatencyToBucket maps d to the first bucket whose bound exceeds it.
// Anything from 500ms up lands in BucketP1000.
func LatencyToBucket(d time.Duration) LatencyBucket {
	for _, b := range latencyBounds {
		if d < b.below {
			return b.bucket
		}
	}
	return BucketP1000
}

// QueryEvent is one search for telemetry recording.
type QueryEvent struct {
	DocumentID  string
	Query       string
	Outcome     Outcome
	ResultCount int
	Latency     time.Duration
}

// IsZeroResult reports a search that completed without any passage.
// Failed and rejected searches never count.
func (e QueryEvent) IsZeroResult() bool {
	if e.Outcome != OutcomeOK && e.Outcome != OutcomeDegraded {
		return false
	}
	return e.ResultCount == 0
}

// CircularBuffer keeps the last capacity items added.
type CircularBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

// NewCircularBuffer creates a buffer. Capacity <= 0 becomes 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{items: make([]T, capacity)}
}

// Add stores item, overwriting the oldest one when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.next] = item
	b.next++
	if b.next == len(b.items) {
		b.next = 0
		b.full = true
	}
}

// Items returns the stored items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full {
		return slices.Clone(b.items[:b.next])
	}
	return append(slices.Clone(b.items[b.next:]), b.items[:b.next]...)
}

func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.items)
	}
	return b.next
}

// ExtractTerms splits a question into lowercase words of three or more
// bytes. Punctuation separates words.
func ExtractTerms(question string) []string {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return slices.DeleteFunc(words, func(w string) bool { return len(w) < 3 })
}

// TermCount is how often a question term was asked.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QuerySnapshot is a copy of the query summary at one moment.
type QuerySnapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	OutcomeCounts       map[Outcome]int64       `json:"outcome_counts"`
	DocumentCounts      map[string]int64        `json:"document_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries, in percent, that
// found nothing.
func (s *QuerySnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return 100 * float64(s.ZeroResultCount) / float64(s.TotalQueries)
}

const (
	DefaultTopTermsCapacity    = 100
	DefaultZeroResultsCapacity = 50
)

// QueryMetrics summarizes the questions asked since startup: outcomes,
// which documents were queried, frequent terms, and recent questions that
// found nothing. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	total     int64
	zeroTotal int64
	outcomes  map[Outcome]int64
	documents map[string]int64
	latencies map[LatencyBucket]int64
	terms     *lru.Cache[string, int64]
	zero      *CircularBuffer[string]
	since     time.Time
}

// NewQueryMetrics creates a summary tracking up to termCapacity terms and
// zeroCapacity zero-result queries. Non-positive values use the defaults.
func NewQueryMetrics(termCapacity, zeroCapacity int) *QueryMetrics {
	if termCapacity <= 0 {
		termCapacity = DefaultTopTermsCapacity
	}
	if zeroCapacity <= 0 {
		zeroCapacity = DefaultZeroResultsCapacity
	}
	terms, _ := lru.New[string, int64](termCapacity)

	return &QueryMetrics{
		outcomes:  map[Outcome]int64{},
		documents: map[string]int64{},
		latencies: map[LatencyBucket]int64{},
		terms:     terms,
		zero:      NewCircularBuffer[string](zeroCapacity),
		since:     time.Now(),
	}
}

// Record adds one query to the summary.
func (m *QueryMetrics) Record(e QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.outcomes[e.Outcome]++
	m.latencies[LatencyToBucket(e.Latency)]++
	if e.DocumentID != "" {
		m.documents[e.DocumentID]++
	}
	for _, term := range ExtractTerms(e.Query) {
		n, _ := m.terms.Peek(term)
		m.terms.Add(term, n+1)
	}
	if e.IsZeroResult() {
		m.zeroTotal++
		m.zero.Add(e.Query)
	}
}

// Snapshot copies the summary. Top terms are ordered by count, most
// frequent first, with ties broken alphabetically.
func (m *QueryMetrics) Snapshot() *QuerySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms := make([]TermCount, 0, m.terms.Len())
	for _, term := range m.terms.Keys() {
		if n, ok := m.terms.Peek(term); ok {
			terms = append(terms, TermCount{Term: term, Count: n})
		}
	}
	slices.SortFunc(terms, func(a, b TermCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Term, b.Term)
	})

	return &QuerySnapshot{
		TotalQueries:        m.total,
		OutcomeCounts:       maps.Clone(m.outcomes),
		DocumentCounts:      maps.Clone(m.documents),
		TopTerms:            terms,
		ZeroResultQueries:   m.zero.Items(),
		ZeroResultCount:     m.zeroTotal,
		LatencyDistribution: maps.Clone(m.latencies),
		Since:               m.since,
	}
}
