package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/pkg/merge"
)

func TestMapError_NilError(t *testing.T) {
	// Given: nil error
	var err error

	// When: mapping the error
	result := MapError(err)

	// Then: returns nil
	assert.Nil(t, result)
}

func TestMapError_DocumentNotFound(t *testing.T) {
	// Given: an unknown document scope
	err := studyerrors.DocumentNotFound("bio")

	// When: mapping the error
	result := MapError(err)

	// Then: the document code is used and the suggestion is appended
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeDocumentNotFound, result.Code)
	assert.Contains(t, result.Message, `document "bio" not found`)
	assert.Contains(t, result.Message, "studyrag index")
}

func TestMapError_SearchFailed(t *testing.T) {
	// Given: every source failed
	err := studyerrors.SearchError(errors.New("bleve closed"))

	// When: mapping the error
	result := MapError(err)

	// Then: the cause does not leak
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeSearchFailed, result.Code)
	assert.NotContains(t, result.Message, "bleve")
}

func TestMapError_Timeouts(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"deadline", context.DeadlineExceeded, "timed out"},
		{"wrapped deadline", fmt.Errorf("vector: %w", context.DeadlineExceeded), "timed out"},
		{"canceled", context.Canceled, "canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapError(tt.err)
			require.NotNil(t, result)
			assert.Equal(t, ErrCodeTimeout, result.Code)
			assert.Contains(t, result.Message, tt.message)
		})
	}
}

func TestMapError_InvalidCandidate(t *testing.T) {
	// Given: a source returned an empty passage
	err := fmt.Errorf("candidate 3: %w", merge.ErrInvalidCandidate)

	// When: mapping the error
	result := MapError(err)

	// Then: it is reported as an invalid candidate
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInvalidCandidate, result.Code)
}

func TestMapError_StudyErrorCategories(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", studyerrors.ValidationError("limit must be positive", nil), ErrCodeInvalidParams},
		{"query empty", studyerrors.New(studyerrors.ErrCodeQueryEmpty, "query is empty", nil), ErrCodeInvalidParams},
		{"invalid candidate", studyerrors.New(studyerrors.ErrCodeInvalidCandidate, "bad passage", nil), ErrCodeInvalidCandidate},
		{"source timeout", studyerrors.New(studyerrors.ErrCodeSourceTimeout, "vector timed out", nil), ErrCodeTimeout},
		{"internal", studyerrors.InternalError("boom", nil), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapError(tt.err)
			require.NotNil(t, result)
			assert.Equal(t, tt.code, result.Code)
		})
	}
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	// Given: an error that is already an MCP error
	original := NewInvalidParamsError("query is required")

	// When: mapping it wrapped
	result := MapError(fmt.Errorf("tool: %w", original))

	// Then: the original is returned
	assert.Same(t, original, result)
}

func TestMapError_UnknownError(t *testing.T) {
	// Given: an error the server knows nothing about
	err := errors.New("disk on fire")

	// When: mapping the error
	result := MapError(err)

	// Then: an internal error without details
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
	assert.NotContains(t, result.Message, "disk")
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "bad"}
	assert.Equal(t, "MCP error -32602: bad", err.Error())
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("summarize")
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "summarize")
}

func TestNewResourceNotFoundError(t *testing.T) {
	err := NewResourceNotFoundError("studyrag://nope")
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "studyrag://nope")
}
