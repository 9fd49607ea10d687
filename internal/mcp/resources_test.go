package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/telemetry"
)

func TestDocumentURI(t *testing.T) {
	assert.Equal(t, "studyrag://documents/bio", DocumentURI("bio"))
}

func TestReadResource_Document(t *testing.T) {
	// Given: an indexed document
	srv := newTestServer(t, newFakeEngine(biologyDoc()))

	// When: reading its resource
	body, err := srv.ReadResource(context.Background(), DocumentURI("bio"))

	// Then: the document info is returned as JSON
	require.NoError(t, err)
	var info DocumentInfo
	require.NoError(t, json.Unmarshal([]byte(body), &info))
	assert.Equal(t, "Cell Biology", info.Title)
	assert.Equal(t, 3, info.Pages)
}

func TestReadResource_UnknownDocument(t *testing.T) {
	srv := newTestServer(t, newFakeEngine())

	_, err := srv.ReadResource(context.Background(), DocumentURI("chem"))

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeDocumentNotFound, mcpErr.Code)
}

func TestReadResource_UnknownURI(t *testing.T) {
	srv := newTestServer(t, newFakeEngine())

	_, err := srv.ReadResource(context.Background(), "file:///etc/passwd")

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestReadResource_QueryMetrics(t *testing.T) {
	// Given: one recorded query
	qm := telemetry.NewQueryMetrics(0, 0)
	qm.Record(telemetry.QueryEvent{Query: "cell membrane", Outcome: telemetry.OutcomeDegraded, ResultCount: 2})
	engine := newFakeEngine()
	engine.StatsFn = func(context.Context) (*search.EngineStats, error) {
		return &search.EngineStats{Queries: qm.Snapshot()}, nil
	}
	srv := newTestServer(t, engine)

	// When: reading the resource
	body, err := srv.ReadResource(context.Background(), QueryMetricsURI)

	// Then: the JSON carries the summary
	require.NoError(t, err)
	var out QueryMetricsOutput
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, int64(1), out.Summary.TotalQueries)
	assert.Equal(t, "session", out.Summary.TimePeriod)
	assert.Equal(t, int64(1), out.OutcomeCounts["degraded"])
}

func TestReadResource_QueryMetricsUnavailable(t *testing.T) {
	// Given: an engine without a query summary
	srv := newTestServer(t, newFakeEngine())

	// When: reading the resource
	_, err := srv.ReadResource(context.Background(), QueryMetricsURI)

	// Then: an error
	assert.Error(t, err)
}

func TestReadResource_StatsFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.StatsFn = func(context.Context) (*search.EngineStats, error) {
		return nil, errors.New("catalog closed")
	}
	srv := newTestServer(t, engine)

	_, err := srv.ReadResource(context.Background(), QueryMetricsURI)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInternalError, mcpErr.Code)
}

func TestHandleReadResource_WrapsContent(t *testing.T) {
	// Given: an indexed document
	srv := newTestServer(t, newFakeEngine(biologyDoc()))
	req := &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: DocumentURI("bio")}}

	// When: the SDK handler runs
	result, err := srv.handleReadResource(context.Background(), req)

	// Then: one JSON content block for the URI
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, DocumentURI("bio"), result.Contents[0].URI)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	assert.Contains(t, result.Contents[0].Text, `"id": "bio"`)
}

func TestRegisterResources_AddsDocuments(t *testing.T) {
	srv := newTestServer(t, newFakeEngine(biologyDoc()))
	assert.NoError(t, srv.RegisterResources(context.Background()))
}
