package analysis

import (
	"errors"
	"fmt"

	"github.com/jonathan/syllabus-analyzer/internal/schemas"
)

// MalformedResponseMessage is the user-facing text for any response that
// cannot be turned into an AnalysisResult.
const MalformedResponseMessage = "Analysis failed. The curriculum content could not be parsed correctly."

// ErrEmptySyllabus is returned when blank text reaches the analyzer.
var ErrEmptySyllabus = errors.New("syllabus text is empty")

// RemoteServiceError represents a failed call to the model (network, auth, quota).
// Its message is the cause's message, shown to the user as-is.
type RemoteServiceError struct {
	Model string
	Cause error
}

func (e *RemoteServiceError) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "remote analysis service failed"
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Cause
}

// MalformedResponseError represents a model response that is not valid JSON
// or does not match the AnalysisResult shape.
type MalformedResponseError struct {
	Cause  error
	Fields []schemas.FieldError
}

func (e *MalformedResponseError) Error() string {
	return MalformedResponseMessage
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// Detail describes what was wrong with the response, for logs.
func (e *MalformedResponseError) Detail() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%d field error(s), first: %s: %s", len(e.Fields), e.Fields[0].Field, e.Fields[0].Message)
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown"
}
