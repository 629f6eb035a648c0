package session

import "errors"

// UnexpectedErrorMessage is shown when a failure carries no message of its own.
const UnexpectedErrorMessage = "An unexpected error occurred during analysis."

var (
	// ErrEmptySyllabus is returned when blank text is submitted. No remote call is made.
	ErrEmptySyllabus = errors.New("syllabus text is empty")
	// ErrAnalysisInFlight is returned when a session is asked to start or edit
	// its input while an analysis is running.
	ErrAnalysisInFlight = errors.New("an analysis is already in progress")
	// ErrAnalysisDiscarded is returned to the caller of Start when the session
	// was reset before the analysis settled.
	ErrAnalysisDiscarded = errors.New("analysis discarded by reset")
)
