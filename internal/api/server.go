// Package api serves the study engine over HTTP.
//
// Routes:
//
//	GET    /health
//	GET    /metrics
//	GET    /api/v1/stats
//	GET    /api/v1/documents
//	POST   /api/v1/documents
//	GET    /api/v1/documents/:id
//	DELETE /api/v1/documents/:id
//	POST   /api/v1/documents/:id/search
//	POST   /api/v1/documents/:id/ground
//
// Every error uses the {"status":"error","message":...,"code":...} envelope.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/telemetry"
)

// DefaultMaxBodyBytes bounds request bodies, ingested text included.
const DefaultMaxBodyBytes = 32 << 20

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// Server is the HTTP front end of a study engine.
type Server struct {
	engine       search.StudyEngine
	metrics      *telemetry.Metrics
	logger       *slog.Logger
	maxBodyBytes int64
	router       *gin.Engine
}

// Option configures the server.
type Option func(*Server)

// WithMetrics exposes m on /metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// New creates a server and its routes.
func New(engine search.StudyEngine, opts ...Option) *Server {
	s := &Server{
		engine:       engine,
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		RequestSizeLimitMiddleware(s.maxBodyBytes),
	)
	s.setupRoutes(router)
	s.router = router
	return s
}

func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.HealthHandler)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stats", s.StatsHandler)

		docs := v1.Group("/documents")
		{
			docs.GET("", s.ListDocumentsHandler)
			docs.POST("", s.IngestDocumentHandler)
			docs.GET("/:id", s.GetDocumentHandler)
			docs.DELETE("/:id", s.DeleteDocumentHandler)
			docs.POST("/:id/search", s.SearchHandler)
			docs.POST("/:id/ground", s.GroundHandler)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, search.ErrorResponse{
			Status:  search.StatusError,
			Message: "no route for " + c.Request.Method + " " + c.Request.URL.Path,
		})
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http_server_started", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.logger.Info("http_server_stopping", slog.String("addr", addr))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
