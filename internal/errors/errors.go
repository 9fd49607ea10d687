package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/Aman-CERP/studyrag/pkg/merge"
)

// StudyError is the structured error type for studyrag.
// It carries what logging, the CLI, and the API need to report a failure.
type StudyError struct {
	// Code is the unique error code (e.g., "ERR_404_DOCUMENT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *StudyError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *StudyError) Unwrap() error {
	return e.Cause
}

// Is matches another *StudyError by code.
func (e *StudyError) Is(target error) bool {
	if t, ok := target.(*StudyError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *StudyError) WithDetail(key, value string) *StudyError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *StudyError) WithSuggestion(suggestion string) *StudyError {
	e.Suggestion = suggestion
	return e
}

// New creates a StudyError. Category, severity, and the retryable flag
// are derived from the code.
func New(code string, message string, cause error) *StudyError {
	return &StudyError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a StudyError whose message is err's message.
func Wrap(code string, err error) *StudyError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *StudyError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *StudyError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *StudyError {
	return New(ErrCodeInvalidInput, message, cause)
}

// SearchError creates the generic retrieval failure shown to users.
// The cause keeps the detail for logs.
func SearchError(cause error) *StudyError {
	return New(ErrCodeSearchFailed, "search failed", cause).
		WithSuggestion("Try again; if it keeps failing, re-index the document")
}

// DocumentNotFound creates the error for an unknown document scope.
func DocumentNotFound(docID string) *StudyError {
	return New(ErrCodeDocumentNotFound, fmt.Sprintf("document %q not found", docID), nil).
		WithDetail("document_id", docID).
		WithSuggestion("Index the document first: studyrag index <file> --doc " + docID)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *StudyError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first *StudyError in err's chain.
func As(err error) (*StudyError, bool) {
	var se *StudyError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Classify converts any error into a *StudyError. Merge validation
// failures become ERR_407_INVALID_CANDIDATE; unknown errors are internal.
func Classify(err error) *StudyError {
	if err == nil {
		return nil
	}
	if se, ok := As(err); ok {
		return se
	}
	if stderrors.Is(err, merge.ErrInvalidCandidate) {
		return New(ErrCodeInvalidCandidate, err.Error(), err)
	}
	return Wrap(ErrCodeInternal, err)
}

// IsRetryable checks if any error in the chain is retryable.
func IsRetryable(err error) bool {
	se, ok := As(err)
	return ok && se.Retryable
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	se, ok := As(err)
	return ok && se.Severity == SeverityFatal
}

// GetCode extracts the error code, or "" when err carries none.
func GetCode(err error) string {
	if se, ok := As(err); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category, or "" when err carries none.
func GetCategory(err error) Category {
	if se, ok := As(err); ok {
		return se.Category
	}
	return ""
}
