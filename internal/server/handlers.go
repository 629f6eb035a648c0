package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/syllabus-analyzer/internal/analysis"
	"github.com/jonathan/syllabus-analyzer/internal/ingestion"
	"github.com/jonathan/syllabus-analyzer/internal/server/middleware"
	"github.com/jonathan/syllabus-analyzer/internal/session"
	"github.com/jonathan/syllabus-analyzer/internal/types"
)

// exportFilename is the download name used by the export endpoint.
const exportFilename = "syllabus-analysis.json"

// uploadOverhead allows for multipart framing around the file itself.
const uploadOverhead = 64 << 10

var validate = validator.New()

// InputRequest is the body of PUT /sessions/{id}/input
type InputRequest struct {
	Text string `json:"text" validate:"max=1048576"`
}

// AnalyzeRequest is the optional body of the analyze endpoints. When Text is
// nil the session's current workspace is analyzed.
type AnalyzeRequest struct {
	Text *string `json:"text,omitempty" validate:"omitempty,max=1048576"`
}

// SampleResponse is returned by GET /sample
type SampleResponse struct {
	Text string `json:"text"`
}

// UploadResponse is returned by POST /sessions/{id}/upload
type UploadResponse struct {
	File    *ingestion.Metadata `json:"file"`
	Session session.Snapshot    `json:"session"`
}

// decodeJSON reads an optional JSON body into v and validates it.
// An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return validateRequest(v)
}

func validateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ErrValidation{Field: strings.ToLower(fe.Field()), Message: "failed '" + fe.Tag() + "' check"}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}

// sessionFrom returns the session resolved by the session middleware.
func (s *Server) sessionFrom(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := middleware.GetSession(r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return sess, true
}

// handleSample returns the built-in sample syllabus
func (s *Server) handleSample(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, SampleResponse{Text: analysis.SampleSyllabus()})
}

// handleCreateSession starts a new session in the UPLOAD step
func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.create()
	s.logger.Info("session created", zap.String("session_id", sess.ID()))
	s.jsonResponse(w, http.StatusCreated, sess.Snapshot())
}

// handleGetSession returns the session snapshot
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFrom(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, sess.Snapshot())
}

// handleSetInput replaces the workspace text
func (s *Server) handleSetInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFrom(w, r)
	if !ok {
		return
	}

	var req InputRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if err := sess.SetInput(req.Text); err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess.Snapshot())
}

// handleUpload reads a .txt or .md file from the "file" form field into the workspace
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFrom(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ingestion.MaxFileBytes+uploadOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(w, &ingestion.FileTooLargeError{Name: "upload", Limit: ingestion.MaxFileBytes})
			return
		}
		s.fail(w, &ErrValidation{Field: "file", Message: err.Error()})
		return
	}
	defer func() { _ = file.Close() }()

	syllabus, err := ingestion.ReadSyllabus(header.Filename, file)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := sess.SetInput(syllabus.Content); err != nil {
		s.fail(w, err)
		return
	}

	meta := syllabus.Metadata()
	s.logger.Info("syllabus uploaded",
		zap.String("session_id", sess.ID()),
		zap.String("file", meta.Name),
		zap.Int("bytes", meta.Bytes),
		zap.String("sha256", meta.Hash),
	)
	s.jsonResponse(w, http.StatusOK, UploadResponse{File: meta, Session: sess.Snapshot()})
}

// handleLoadSample puts the sample syllabus into the workspace
func (s *Server) handleLoadSample(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFrom(w, r)
	if !ok {
		return
	}
	if err := sess.LoadSample(); err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess.Snapshot())
}

// handleAnalyze runs one analysis and blocks until it settles
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFrom(w, r)
	if !ok {
		return
	}

	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}

	if _, err := s.start(r, sess, req); err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess.Snapshot())
}

// handleAnalyzeStream runs one analysis and streams step and phase changes as SSE
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFrom(w, r)
	if !ok {
		return
	}

	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	type outcome struct {
		result *types.AnalysisResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.start(r, sess, req)
		done <- outcome{result: result, err: err}
	}()

	for {
		select {
		case ev := <-events:
			s.writeSessionEvent(sse, ev)
		case out := <-done:
			// Flush events emitted before Start returned.
			for drained := false; !drained; {
				select {
				case ev := <-events:
					s.writeSessionEvent(sse, ev)
				default:
					drained = true
				}
			}
			if out.err != nil {
				sse.WriteError(out.err.Error(), HTTPStatus(out.err))
			} else {
				sse.WriteEvent(eventResult, out.result) //nolint:errcheck
			}
			sse.WriteComplete(sess.ID(), string(sess.Snapshot().Step))
			return
		}
	}
}

func (s *Server) writeSessionEvent(sse *SSEWriter, ev session.Event) {
	name := eventStep
	if ev.Type == session.EventPhase {
		name = eventPhase
	}
	if err := sse.WriteEvent(name, ev); err != nil {
		s.logger.Debug("sse write failed", zap.Error(err))
	}
}

// start runs the analysis detached from the request, so a client that
// disconnects leaves the remote call running. Only Reset discards it.
func (s *Server) start(r *http.Request, sess *session.Session, req AnalyzeRequest) (*types.AnalysisResult, error) {
	ctx := context.WithoutCancel(r.Context())
	if req.Text != nil {
		return sess.Start(ctx, *req.Text)
	}
	return sess.Submit(ctx)
}

// handleReset returns the session to UPLOAD
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFrom(w, r)
	if !ok {
		return
	}
	sess.Reset()
	s.jsonResponse(w, http.StatusOK, sess.Snapshot())
}

// handleExport downloads the raw result JSON
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFrom(w, r)
	if !ok {
		return
	}

	snap := sess.Snapshot()
	if snap.Result == nil {
		s.fail(w, ErrNoResult)
		return
	}

	data, err := json.MarshalIndent(snap.Result, "", "  ")
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
