package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	QueryMetricsURI   = "studyrag://query_metrics"
	documentURIPrefix = "studyrag://documents/"
)

// DocumentURI returns the resource URI of a document.
func DocumentURI(id string) string {
	return documentURIPrefix + id
}

// RegisterResources registers every indexed document as a resource.
// Call it after the server is created and before serving.
func (s *Server) RegisterResources(ctx context.Context) error {
	docs, err := s.engine.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	for _, d := range docs {
		s.mcp.AddResource(
			&mcp.Resource{
				Name:        d.ID,
				URI:         DocumentURI(d.ID),
				Description: fmt.Sprintf("%s (%d pages, %d passages)", d.Title, d.PageCount, d.PassageCount),
				MIMEType:    "application/json",
			},
			s.handleReadResource,
		)
	}

	s.logger.Info("resources_registered", "count", len(docs))
	return nil
}

// handleReadResource serves document and query metrics resources.
func (s *Server) handleReadResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     content,
		}},
	}, nil
}

// ReadResource returns the JSON body of a resource.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	var body any
	switch {
	case uri == QueryMetricsURI:
		out, err := s.queryMetrics(ctx)
		if err != nil {
			return "", err
		}
		body = out

	case strings.HasPrefix(uri, documentURIPrefix):
		doc, err := s.engine.GetDocument(ctx, strings.TrimPrefix(uri, documentURIPrefix))
		if err != nil {
			return "", MapError(err)
		}
		body = toDocumentInfo(doc)

	default:
		return "", NewResourceNotFoundError(uri)
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return "", MapError(err)
	}
	return string(data), nil
}

// QueryMetricsOutput is the JSON structure for the query_metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	OutcomeCounts       map[string]int64    `json:"outcome_counts"`
	DocumentCounts      map[string]int64    `json:"document_counts"`
	TopTerms            []QueryTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries  int64   `json:"total_queries"`
	TimePeriod    string  `json:"time_period"`
	ZeroResultPct float64 `json:"zero_result_pct"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         QueryMetricsURI,
			Description: "Recent question patterns: outcomes, questions per document, top terms, zero-result questions",
			MIMEType:    "application/json",
		},
		s.handleReadResource,
	)
}

func (s *Server) queryMetrics(ctx context.Context) (*QueryMetricsOutput, error) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	if stats.Queries == nil {
		return nil, NewInvalidParamsError("query metrics not available")
	}
	snap := stats.Queries

	out := &QueryMetricsOutput{
		Summary: QueryMetricsSummary{
			TotalQueries:  snap.TotalQueries,
			TimePeriod:    "session",
			ZeroResultPct: snap.ZeroResultPercentage(),
		},
		OutcomeCounts:       make(map[string]int64, len(snap.OutcomeCounts)),
		DocumentCounts:      snap.DocumentCounts,
		TopTerms:            make([]QueryTermCount, 0, len(snap.TopTerms)),
		ZeroResultQueries:   snap.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
	}
	for outcome, n := range snap.OutcomeCounts {
		out.OutcomeCounts[string(outcome)] = n
	}
	for _, tc := range snap.TopTerms {
		out.TopTerms = append(out.TopTerms, QueryTermCount{Term: tc.Term, Count: tc.Count})
	}
	for bucket, n := range snap.LatencyDistribution {
		out.LatencyDistribution[string(bucket)] = n
	}
	return out, nil
}
