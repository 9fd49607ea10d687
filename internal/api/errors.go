package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/search"
)

// HTTPStatus maps an error to a response status by its code.
func HTTPStatus(err error) int {
	se := studyerrors.Classify(err)
	if se == nil {
		return http.StatusInternalServerError
	}

	switch se.Code {
	case studyerrors.ErrCodeDocumentNotFound:
		return http.StatusNotFound
	case studyerrors.ErrCodeInvalidCandidate, studyerrors.ErrCodeEmptyDocument:
		return http.StatusUnprocessableEntity
	case studyerrors.ErrCodeQueryTooLong:
		return http.StatusRequestEntityTooLarge
	case studyerrors.ErrCodeSearchFailed, studyerrors.ErrCodeDataDirLocked:
		return http.StatusServiceUnavailable
	}

	switch se.Category {
	case studyerrors.CategoryValidation:
		return http.StatusBadRequest
	case studyerrors.CategorySource:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendError writes the error envelope and logs server-side failures.
func sendError(c *gin.Context, logger *slog.Logger, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		attrs := []any{slog.String("request_id", c.GetString(requestIDKey))}
		for k, v := range studyerrors.FormatForLog(err) {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.Error("request_failed", attrs...)
	}
	c.JSON(status, search.NewErrorResponse(err))
}

// bindJSON decodes the body into dst, or writes a 400 and returns false.
func bindJSON(c *gin.Context, logger *slog.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, search.ErrorResponse{
				Status:  search.StatusError,
				Message: "request body is too large",
				Code:    studyerrors.ErrCodeFileTooLarge,
			})
			return false
		}
		sendError(c, logger, studyerrors.ValidationError("invalid JSON body: "+err.Error(), err))
		return false
	}
	return true
}
