// Package mcp serves the study engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/pkg/merge"
)

// Custom MCP error codes for studyrag.
const (
	// ErrCodeDocumentNotFound indicates the requested document is not indexed.
	ErrCodeDocumentNotFound = -32001

	// ErrCodeSearchFailed indicates every retrieval source failed.
	ErrCodeSearchFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeInvalidCandidate indicates a source returned an unusable passage.
	ErrCodeInvalidCandidate = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts engine errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	if se, ok := studyerrors.As(err); ok {
		return mapStudyError(se)
	}
	if errors.Is(err, merge.ErrInvalidCandidate) {
		return &MCPError{Code: ErrCodeInvalidCandidate, Message: err.Error()}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapStudyError(se *studyerrors.StudyError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", se.Message, se.Suggestion)
	}

	switch se.Code {
	case studyerrors.ErrCodeDocumentNotFound:
		return &MCPError{Code: ErrCodeDocumentNotFound, Message: message}
	case studyerrors.ErrCodeSearchFailed:
		return &MCPError{Code: ErrCodeSearchFailed, Message: message}
	case studyerrors.ErrCodeInvalidCandidate:
		return &MCPError{Code: ErrCodeInvalidCandidate, Message: message}
	}

	switch se.Category {
	case studyerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case studyerrors.CategorySource:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
