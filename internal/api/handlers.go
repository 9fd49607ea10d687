package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/store"
	"github.com/Aman-CERP/studyrag/pkg/version"
)

// IngestRequest is the body of POST /api/v1/documents.
type IngestRequest struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	SourcePath string `json:"source_path"`
	Content    string `json:"content"`
	Force      bool   `json:"force"`
}

// SearchRequest is the body of POST /api/v1/documents/:id/search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// GroundRequest is the body of POST /api/v1/documents/:id/ground.
type GroundRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
}

// DocumentsResponse lists documents.
type DocumentsResponse struct {
	Status    string            `json:"status"`
	Documents []*store.Document `json:"documents"`
}

// DocumentResponse carries one document.
type DocumentResponse struct {
	Status    string          `json:"status"`
	Document  *store.Document `json:"document"`
	Unchanged bool            `json:"unchanged,omitempty"`
}

// HealthHandler reports liveness and the build version.
func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) StatsHandler(c *gin.Context) {
	stats, err := s.engine.Stats(c.Request.Context())
	if err != nil {
		sendError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": search.StatusSuccess, "stats": stats})
}

func (s *Server) ListDocumentsHandler(c *gin.Context) {
	docs, err := s.engine.ListDocuments(c.Request.Context())
	if err != nil {
		sendError(c, s.logger, err)
		return
	}
	if docs == nil {
		docs = []*store.Document{}
	}
	c.JSON(http.StatusOK, DocumentsResponse{Status: search.StatusSuccess, Documents: docs})
}

// IngestDocumentHandler adds or replaces a document from extracted text.
// A new document answers 201, a replaced or unchanged one 200.
func (s *Server) IngestDocumentHandler(c *gin.Context) {
	var req IngestRequest
	if !bindJSON(c, s.logger, &req) {
		return
	}

	ctx := c.Request.Context()
	id := req.DocumentID
	if id == "" {
		id = search.DeriveDocumentID(req.Title, req.SourcePath)
	}
	_, getErr := s.engine.GetDocument(ctx, id)
	existed := getErr == nil

	res, err := s.engine.Ingest(ctx, search.IngestRequest{
		DocumentID: id,
		Title:      req.Title,
		SourcePath: req.SourcePath,
		Content:    []byte(req.Content),
		Force:      req.Force,
	})
	if err != nil {
		sendError(c, s.logger, err)
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	c.JSON(status, DocumentResponse{
		Status:    search.StatusSuccess,
		Document:  res.Document,
		Unchanged: res.Unchanged,
	})
}

func (s *Server) GetDocumentHandler(c *gin.Context) {
	doc, err := s.engine.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, DocumentResponse{Status: search.StatusSuccess, Document: doc})
}

func (s *Server) DeleteDocumentHandler(c *gin.Context) {
	if err := s.engine.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		sendError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": search.StatusSuccess})
}

// SearchHandler runs a hybrid search scoped to the document in the path.
func (s *Server) SearchHandler(c *gin.Context) {
	var req SearchRequest
	if !bindJSON(c, s.logger, &req) {
		return
	}

	resp, err := s.engine.Search(c.Request.Context(), search.SearchRequest{
		DocumentID: c.Param("id"),
		Query:      req.Query,
		Limit:      req.Limit,
	})
	if err != nil {
		sendError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GroundHandler returns the context block and answer prompt for a question.
func (s *Server) GroundHandler(c *gin.Context) {
	var req GroundRequest
	if !bindJSON(c, s.logger, &req) {
		return
	}

	g, err := s.engine.Ground(c.Request.Context(), search.GroundRequest{
		DocumentID: c.Param("id"),
		Question:   req.Question,
		Limit:      req.Limit,
	})
	if err != nil {
		sendError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, g)
}
