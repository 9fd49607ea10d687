package search

import (
	"strconv"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/pkg/merge"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is one passage as returned to callers.
type Result struct {
	Content    string            `json:"content"`
	Score      float64           `json:"score"`
	Source     string            `json:"source"`
	Page       int               `json:"page"`
	Section    string            `json:"section,omitempty"`
	DocumentID string            `json:"document_id"`
	PassageID  string            `json:"passage_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Response is the success envelope of a search.
type Response struct {
	Status   string   `json:"status"`
	Results  []Result `json:"results"`
	Degraded bool     `json:"degraded,omitempty"`
}

// ErrorResponse is the error envelope shared by every surface.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewResponse shapes merged candidates into a success response.
// Results is never nil.
func NewResponse(cands []merge.Candidate, degraded bool) *Response {
	return &Response{
		Status:   StatusSuccess,
		Results:  ToResults(cands),
		Degraded: degraded,
	}
}

// ToResults converts candidates, lifting well-known metadata into fields.
// Metadata keys other than page, section, document and passage ID pass
// through in Metadata.
func ToResults(cands []merge.Candidate) []Result {
	results := make([]Result, 0, len(cands))
	for _, c := range cands {
		r := Result{
			Content:    c.Content,
			Score:      c.Score,
			Source:     string(c.Source),
			Section:    c.Meta(merge.MetaSection),
			DocumentID: c.Meta(merge.MetaDocumentID),
			PassageID:  c.Meta(merge.MetaPassageID),
		}
		if page, err := strconv.Atoi(c.Meta(merge.MetaPage)); err == nil {
			r.Page = page
		}
		for k, v := range c.Metadata {
			switch k {
			case merge.MetaPage, merge.MetaSection, merge.MetaDocumentID, merge.MetaPassageID:
				continue
			}
			if r.Metadata == nil {
				r.Metadata = make(map[string]string)
			}
			r.Metadata[k] = v
		}
		results = append(results, r)
	}
	return results
}

// NewErrorResponse shapes err into the error envelope. The message is the
// user-facing one; causes stay in the logs.
func NewErrorResponse(err error) *ErrorResponse {
	se := studyerrors.Classify(err)
	if se == nil {
		se = studyerrors.InternalError("unknown error", nil)
	}
	return &ErrorResponse{
		Status:  StatusError,
		Message: se.Message,
		Code:    se.Code,
	}
}
