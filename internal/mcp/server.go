package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/pkg/version"
)

// Limits applied to tool calls.
const (
	DefaultToolLimit = 5
	MaxToolLimit     = 50
)

// Server exposes a study engine to MCP clients.
type Server struct {
	mcp    *mcp.Server
	engine search.StudyEngine
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        ToolSearchDocument,
		Description: "Search one study document. Combines keyword and semantic retrieval and returns the most relevant passages with page and section citations. Call list_documents first to find the document_id.",
	},
	{
		Name:        ToolGroundQuestion,
		Description: "Build grounding for answering a student's question from one study document: the relevant passages in ranked order and a prompt that asks for page citations.",
	},
	{
		Name:        ToolListDocuments,
		Description: "List the indexed study documents with their IDs, titles and sizes.",
	},
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates an MCP server with the study tools and the
// query_metrics resource registered.
func NewServer(engine search.StudyEngine, opts ...ServerOption) (*Server, error) {
	if engine == nil {
		return nil, errors.New("study engine is required")
	}

	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    version.Name,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerQueryMetricsResource()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name and returns its markdown rendering.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolSearchDocument:
		in := SearchDocumentInput{
			DocumentID: stringArg(args, "document_id"),
			Query:      stringArg(args, "query"),
			Limit:      intArg(args, "limit"),
		}
		out, err := s.searchDocument(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatSearchResults(in.DocumentID, strings.TrimSpace(in.Query), out), nil

	case ToolGroundQuestion:
		g, err := s.groundQuestion(ctx, GroundQuestionInput{
			DocumentID: stringArg(args, "document_id"),
			Question:   stringArg(args, "question"),
			Limit:      intArg(args, "limit"),
		})
		if err != nil {
			return "", err
		}
		return FormatGrounding(g), nil

	case ToolListDocuments:
		docs, err := s.engine.ListDocuments(ctx)
		if err != nil {
			return "", MapError(err)
		}
		return FormatDocuments(docs), nil

	default:
		return "", NewMethodNotFoundError(name)
	}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg reads a JSON number argument.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (s *Server) searchDocument(ctx context.Context, in SearchDocumentInput) (*search.Response, error) {
	if strings.TrimSpace(in.DocumentID) == "" {
		return nil, NewInvalidParamsError("document_id is required; call list_documents to find it")
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	start := time.Now()
	requestID := uuid.NewString()
	limit := clampLimit(in.Limit, DefaultToolLimit, 1, MaxToolLimit)

	s.logger.Info("tool_search_started",
		slog.String("request_id", requestID),
		slog.String("document_id", in.DocumentID),
		slog.Int("limit", limit))

	resp, err := s.engine.Search(ctx, search.SearchRequest{
		DocumentID: in.DocumentID,
		Query:      in.Query,
		Limit:      limit,
	})
	if err != nil {
		s.logger.Error("tool_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("tool_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(resp.Results)))
	return resp, nil
}

func (s *Server) groundQuestion(ctx context.Context, in GroundQuestionInput) (*search.Grounding, error) {
	if strings.TrimSpace(in.DocumentID) == "" {
		return nil, NewInvalidParamsError("document_id is required; call list_documents to find it")
	}
	if strings.TrimSpace(in.Question) == "" {
		return nil, NewInvalidParamsError("question cannot be empty or whitespace only")
	}

	g, err := s.engine.Ground(ctx, search.GroundRequest{
		DocumentID: in.DocumentID,
		Question:   in.Question,
		Limit:      clampLimit(in.Limit, DefaultToolLimit, 1, MaxToolLimit),
	})
	if err != nil {
		return nil, MapError(err)
	}
	return g, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchDocumentHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpGroundQuestionHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpListDocumentsHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchDocumentInput) (
	*mcp.CallToolResult,
	SearchDocumentOutput,
	error,
) {
	resp, err := s.searchDocument(ctx, input)
	if err != nil {
		return nil, SearchDocumentOutput{}, err
	}
	return nil, SearchDocumentOutput{Results: resp.Results, Degraded: resp.Degraded}, nil
}

func (s *Server) mcpGroundQuestionHandler(ctx context.Context, _ *mcp.CallToolRequest, input GroundQuestionInput) (
	*mcp.CallToolResult,
	GroundQuestionOutput,
	error,
) {
	g, err := s.groundQuestion(ctx, input)
	if err != nil {
		return nil, GroundQuestionOutput{}, err
	}
	sources := g.Sources
	if sources == nil {
		sources = []search.Result{}
	}
	return nil, GroundQuestionOutput{
		Context:  g.Context,
		Prompt:   g.Prompt,
		Sources:  sources,
		Degraded: g.Degraded,
	}, nil
}

func (s *Server) mcpListDocumentsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListDocumentsInput) (
	*mcp.CallToolResult,
	ListDocumentsOutput,
	error,
) {
	docs, err := s.engine.ListDocuments(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, MapError(err)
	}
	out := ListDocumentsOutput{Documents: make([]DocumentInfo, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, toDocumentInfo(d))
	}
	return nil, out, nil
}

// Serve runs the server on stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.RegisterResources(ctx); err != nil {
		s.logger.Warn("resource_registration_failed", slog.String("error", err.Error()))
	}

	s.logger.Info("mcp_server_started", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return fmt.Errorf("mcp server: %w", err)
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}
