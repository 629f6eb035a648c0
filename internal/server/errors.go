// Package server provides the HTTP API for the syllabus analyzer.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/syllabus-analyzer/internal/analysis"
	"github.com/jonathan/syllabus-analyzer/internal/ingestion"
	"github.com/jonathan/syllabus-analyzer/internal/session"
)

// ErrNoResult is returned by export when the session has no finished analysis.
var ErrNoResult = errors.New("no analysis result to export")

// ErrSessionNotFound indicates the session id is unknown
type ErrSessionNotFound struct {
	ID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound    *ErrSessionNotFound
		validation  *ErrValidation
		unsupported *ingestion.UnsupportedFileError
		tooLarge    *ingestion.FileTooLargeError
		remote      *analysis.RemoteServiceError
		malformed   *analysis.MalformedResponseError
	)

	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &notFound), errors.Is(err, ErrNoResult):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &unsupported),
		errors.Is(err, session.ErrEmptySyllabus), errors.Is(err, analysis.ErrEmptySyllabus):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrAnalysisInFlight), errors.Is(err, session.ErrAnalysisDiscarded):
		return http.StatusConflict
	case errors.As(err, &remote), errors.As(err, &malformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
