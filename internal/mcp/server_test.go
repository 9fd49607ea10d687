package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/store"
	"github.com/Aman-CERP/studyrag/internal/telemetry"
)

// fakeEngine implements search.StudyEngine for testing.
type fakeEngine struct {
	SearchFn func(ctx context.Context, req search.SearchRequest) (*search.Response, error)
	GroundFn func(ctx context.Context, req search.GroundRequest) (*search.Grounding, error)
	ListFn   func(ctx context.Context) ([]*store.Document, error)
	StatsFn  func(ctx context.Context) (*search.EngineStats, error)

	docs map[string]*store.Document

	lastSearch search.SearchRequest
	lastGround search.GroundRequest
	closed     bool
}

var _ search.StudyEngine = (*fakeEngine)(nil)

func newFakeEngine(docs ...*store.Document) *fakeEngine {
	f := &fakeEngine{docs: make(map[string]*store.Document)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeEngine) Ingest(_ context.Context, req search.IngestRequest) (*search.IngestResult, error) {
	doc := &store.Document{ID: req.DocumentID, Title: req.Title}
	f.docs[doc.ID] = doc
	return &search.IngestResult{Document: doc}, nil
}

func (f *fakeEngine) Search(ctx context.Context, req search.SearchRequest) (*search.Response, error) {
	f.lastSearch = req
	if f.SearchFn != nil {
		return f.SearchFn(ctx, req)
	}
	return search.NewResponse(nil, false), nil
}

func (f *fakeEngine) Ground(ctx context.Context, req search.GroundRequest) (*search.Grounding, error) {
	f.lastGround = req
	if f.GroundFn != nil {
		return f.GroundFn(ctx, req)
	}
	return &search.Grounding{Status: search.StatusSuccess, Question: req.Question}, nil
}

func (f *fakeEngine) GetDocument(_ context.Context, id string) (*store.Document, error) {
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return nil, studyerrors.DocumentNotFound(id)
}

func (f *fakeEngine) ListDocuments(ctx context.Context) ([]*store.Document, error) {
	if f.ListFn != nil {
		return f.ListFn(ctx)
	}
	out := make([]*store.Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeEngine) DeleteDocument(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return studyerrors.DocumentNotFound(id)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeEngine) Stats(ctx context.Context) (*search.EngineStats, error) {
	if f.StatsFn != nil {
		return f.StatsFn(ctx)
	}
	return &search.EngineStats{Documents: len(f.docs)}, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func biologyDoc() *store.Document {
	return &store.Document{
		ID:           "bio",
		Title:        "Cell Biology",
		PageCount:    3,
		PassageCount: 4,
		IndexedAt:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, engine *fakeEngine) *Server {
	t.Helper()
	srv, err := NewServer(engine)
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresEngine(t *testing.T) {
	// Given: no engine
	// When: creating the server
	srv, err := NewServer(nil)

	// Then: creation fails
	assert.Error(t, err)
	assert.Nil(t, srv)
}

func TestNewServer_RegistersTools(t *testing.T) {
	// Given: a server
	srv := newTestServer(t, newFakeEngine())

	// When: listing tools
	tools := srv.ListTools()

	// Then: the three study tools are present with descriptions
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.Equal(t, []string{ToolSearchDocument, ToolGroundQuestion, ToolListDocuments}, names)
	assert.NotNil(t, srv.MCPServer())
}

func TestListTools_ReturnsCopy(t *testing.T) {
	// Given: a tool list that a caller mutates
	srv := newTestServer(t, newFakeEngine())
	first := srv.ListTools()
	first[0].Name = "mutated"

	// When: listing again
	second := srv.ListTools()

	// Then: the registered tools are unchanged
	assert.Equal(t, ToolSearchDocument, second[0].Name)
}

func TestRegisterResources_ListFailure(t *testing.T) {
	// Given: an engine whose catalog is unavailable
	engine := newFakeEngine()
	engine.ListFn = func(context.Context) ([]*store.Document, error) {
		return nil, errors.New("catalog closed")
	}
	srv := newTestServer(t, engine)

	// When: registering document resources
	err := srv.RegisterResources(context.Background())

	// Then: the failure is reported
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog closed")
}

func TestQueryMetricsResource_FromEngineStats(t *testing.T) {
	// Given: an engine with recorded queries
	qm := telemetry.NewQueryMetrics(0, 0)
	qm.Record(telemetry.QueryEvent{DocumentID: "bio", Query: "enzyme catalysis", Outcome: telemetry.OutcomeOK, ResultCount: 3, Latency: 5 * time.Millisecond})
	qm.Record(telemetry.QueryEvent{DocumentID: "bio", Query: "mitosis", Outcome: telemetry.OutcomeOK, ResultCount: 0, Latency: 20 * time.Millisecond})
	engine := newFakeEngine()
	engine.StatsFn = func(context.Context) (*search.EngineStats, error) {
		return &search.EngineStats{Queries: qm.Snapshot()}, nil
	}
	srv := newTestServer(t, engine)

	// When: building the query metrics
	out, err := srv.queryMetrics(context.Background())

	// Then: the summary reflects both queries
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Summary.TotalQueries)
	assert.InDelta(t, 50.0, out.Summary.ZeroResultPct, 0.001)
	assert.Equal(t, int64(2), out.OutcomeCounts["ok"])
	assert.Equal(t, []string{"mitosis"}, out.ZeroResultQueries)
	assert.Equal(t, int64(1), out.LatencyDistribution["p10"])
	assert.Equal(t, int64(1), out.LatencyDistribution["p50"])
	assert.NotEmpty(t, out.TopTerms)
	assert.Equal(t, map[string]int64{"bio": 2}, out.DocumentCounts)
}
