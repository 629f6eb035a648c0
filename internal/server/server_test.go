package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/syllabus-analyzer/internal/analysis"
	"github.com/jonathan/syllabus-analyzer/internal/server/ratelimit"
	"github.com/jonathan/syllabus-analyzer/internal/session"
	"github.com/jonathan/syllabus-analyzer/internal/types"
)

func testResult() *types.AnalysisResult {
	return &types.AnalysisResult{
		OverallScore: 81,
		Subjects: []types.SubjectImportance{
			{SubjectName: "Cloud", ImportanceScore: 60, IndustryRelevance: "High", MappedSkills: []string{"AWS"}},
			{SubjectName: "Ethics", ImportanceScore: 40, IndustryRelevance: "Rising", MappedSkills: []string{"Bias detection"}},
		},
		ExtractedTopics:          []string{"Lambda"},
		IndustryAlignmentSummary: "Aligned.",
		TopSkillsCovered:         []string{"AWS"},
	}
}

func newTestServer(t *testing.T, runner session.Runner) *Server {
	t.Helper()
	s := New(Config{
		Session:   session.Config{PhaseInterval: 5 * time.Millisecond, Sample: "SAMPLE SYLLABUS"},
		RateLimit: &ratelimit.Config{Enabled: false},
		Logger:    zaptest.NewLogger(t),
	}, runner)
	t.Cleanup(s.Close)
	return s
}

func succeed() session.Runner {
	return session.RunnerFunc(func(_ context.Context, _ string) (*types.AnalysisResult, error) {
		return testResult(), nil
	})
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, s *Server) session.Snapshot {
	t.Helper()
	w := do(t, s, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, succeed())

	w := do(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, succeed())
	createSession(t, s)

	w := do(t, s, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "syllabus_sessions_active")
}

func TestSampleEndpoint(t *testing.T) {
	s := newTestServer(t, succeed())

	w := do(t, s, http.MethodGet, "/sample", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp SampleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, analysis.SampleSyllabus(), resp.Text)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, succeed())

	w := do(t, s, http.MethodOptions, "/sessions", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestServer(t, succeed())

	created := createSession(t, s)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, session.StepUpload, created.Step)

	w := do(t, s, http.MethodGet, "/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decodeSnapshot(t, w).ID)
	assert.Equal(t, 1, s.sessions.count())
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t, succeed())

	for _, path := range []string{"/sessions/nope", "/sessions/nope/export"} {
		w := do(t, s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := do(t, s, http.MethodPost, "/sessions/nope/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, (&ErrSessionNotFound{ID: "nope"}).Error(), decodeError(t, w))
}

func TestSetInputAndLoadSample(t *testing.T) {
	s := newTestServer(t, succeed())
	id := createSession(t, s).ID

	w := do(t, s, http.MethodPut, "/sessions/"+id+"/input", InputRequest{Text: "Week 1: Go"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Week 1: Go", decodeSnapshot(t, w).Input)

	w = do(t, s, http.MethodPost, "/sessions/"+id+"/sample", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SAMPLE SYLLABUS", decodeSnapshot(t, w).Input)
}

func TestSetInput_InvalidJSON(t *testing.T) {
	s := newTestServer(t, succeed())
	id := createSession(t, s).ID

	req := httptest.NewRequest(http.MethodPut, "/sessions/"+id+"/input", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "invalid JSON")
}

func TestAnalyze_Success(t *testing.T) {
	s := newTestServer(t, succeed())
	id := createSession(t, s).ID
	do(t, s, http.MethodPut, "/sessions/"+id+"/input", InputRequest{Text: "Module 1: Cloud"})

	w := do(t, s, http.MethodPost, "/sessions/"+id+"/analyze", nil)

	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, session.StepResults, snap.Step)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 81, snap.Result.OverallScore)
}

func TestAnalyze_TextInBody(t *testing.T) {
	var got string
	runner := session.RunnerFunc(func(_ context.Context, text string) (*types.AnalysisResult, error) {
		got = text
		return testResult(), nil
	})
	s := newTestServer(t, runner)
	id := createSession(t, s).ID

	text := "Inline syllabus"
	w := do(t, s, http.MethodPost, "/sessions/"+id+"/analyze", AnalyzeRequest{Text: &text})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Inline syllabus", got)
	assert.Equal(t, "Inline syllabus", decodeSnapshot(t, w).Input)
}

func TestAnalyze_EmptyInput(t *testing.T) {
	called := false
	runner := session.RunnerFunc(func(_ context.Context, _ string) (*types.AnalysisResult, error) {
		called = true
		return testResult(), nil
	})
	s := newTestServer(t, runner)
	id := createSession(t, s).ID

	w := do(t, s, http.MethodPost, "/sessions/"+id+"/analyze", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}

func TestAnalyze_RemoteFailure(t *testing.T) {
	runner := session.RunnerFunc(func(_ context.Context, _ string) (*types.AnalysisResult, error) {
		return nil, &analysis.RemoteServiceError{Cause: errors.New("API key not valid")}
	})
	s := newTestServer(t, runner)
	id := createSession(t, s).ID
	do(t, s, http.MethodPut, "/sessions/"+id+"/input", InputRequest{Text: "syllabus"})

	w := do(t, s, http.MethodPost, "/sessions/"+id+"/analyze", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "API key not valid", decodeError(t, w))

	snap := decodeSnapshot(t, do(t, s, http.MethodGet, "/sessions/"+id, nil))
	assert.Equal(t, session.StepUpload, snap.Step)
	assert.Equal(t, "API key not valid", snap.Error)
	assert.Empty(t, snap.Input)
}

func TestAnalyze_Malformed(t *testing.T) {
	runner := session.RunnerFunc(func(_ context.Context, _ string) (*types.AnalysisResult, error) {
		return nil, &analysis.MalformedResponseError{Cause: errors.New("bad json")}
	})
	s := newTestServer(t, runner)
	id := createSession(t, s).ID
	text := "syllabus"

	w := do(t, s, http.MethodPost, "/sessions/"+id+"/analyze", AnalyzeRequest{Text: &text})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, analysis.MalformedResponseMessage, decodeError(t, w))
}

func TestAnalyze_InFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	runner := session.RunnerFunc(func(_ context.Context, _ string) (*types.AnalysisResult, error) {
		close(started)
		<-release
		return testResult(), nil
	})
	s := newTestServer(t, runner)
	id := createSession(t, s).ID
	text := "syllabus"

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- do(t, s, http.MethodPost, "/sessions/"+id+"/analyze", AnalyzeRequest{Text: &text})
	}()
	<-started

	w := do(t, s, http.MethodPost, "/sessions/"+id+"/analyze", AnalyzeRequest{Text: &text})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, http.MethodPut, "/sessions/"+id+"/input", InputRequest{Text: "edit"})
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	assert.Equal(t, http.StatusOK, (<-first).Code)
}

func TestAnalyze_ClientDisconnectKeepsAnalysis(t *testing.T) {
	var calls int32
	runner := session.RunnerFunc(func(ctx context.Context, _ string) (*types.AnalysisResult, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return testResult(), nil
	})

	tests := []struct {
		name       string
		minDisplay time.Duration
	}{
		{name: "disconnect during remote call"},
		{name: "disconnect during hold", minDisplay: 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atomic.StoreInt32(&calls, 0)
			s := New(Config{
				Session:   session.Config{PhaseInterval: 5 * time.Millisecond, MinDisplay: tt.minDisplay},
				RateLimit: &ratelimit.Config{Enabled: false},
				Logger:    zaptest.NewLogger(t),
			}, runner)
			t.Cleanup(s.Close)
			id := createSession(t, s).ID

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			defer cancel()
			text := "syllabus"
			body, err := json.Marshal(AnalyzeRequest{Text: &text})
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/analyze", bytes.NewReader(body)).WithContext(ctx)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

			snap := decodeSnapshot(t, do(t, s, http.MethodGet, "/sessions/"+id, nil))
			assert.Equal(t, session.StepResults, snap.Step)
			assert.Equal(t, "syllabus", snap.Input)
			assert.Empty(t, snap.Error)
			require.NotNil(t, snap.Result)
			assert.Equal(t, 81, snap.Result.OverallScore)
		})
	}
}

func TestAnalyzeStream(t *testing.T) {
	s := newTestServer(t, succeed())
	id := createSession(t, s).ID
	text := "syllabus"

	w := do(t, s, http.MethodPost, "/sessions/"+id+"/analyze/stream", AnalyzeRequest{Text: &text})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: step\ndata: {\"type\":\"step\",\"step\":\"PROCESSING\"")
	assert.Contains(t, body, "event: phase\ndata: {\"type\":\"phase\",\"phase\":\"Parsing Syllabus Data...\"")
	assert.Contains(t, body, "event: result\n")
	assert.Contains(t, body, "\"overallScore\":81")
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, "\"step\":\"RESULTS\"")
	assert.NotContains(t, body, "event: error")
	assert.Less(t, strings.Index(body, "event: result"), strings.Index(body, "event: complete"))
}

func TestAnalyzeStream_Error(t *testing.T) {
	runner := session.RunnerFunc(func(_ context.Context, _ string) (*types.AnalysisResult, error) {
		return nil, &analysis.RemoteServiceError{Cause: errors.New("quota exceeded")}
	})
	s := newTestServer(t, runner)
	id := createSession(t, s).ID
	text := "syllabus"

	w := do(t, s, http.MethodPost, "/sessions/"+id+"/analyze/stream", AnalyzeRequest{Text: &text})

	body := w.Body.String()
	assert.Contains(t, body, "event: error\ndata: {\"error\":\"quota exceeded\",\"status\":502}")
	assert.Contains(t, body, "\"step\":\"UPLOAD\"")
	assert.NotContains(t, body, "event: result")
}

func TestResetAndExport(t *testing.T) {
	s := newTestServer(t, succeed())
	id := createSession(t, s).ID

	w := do(t, s, http.MethodGet, "/sessions/"+id+"/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrNoResult.Error(), decodeError(t, w))

	text := "syllabus"
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/sessions/"+id+"/analyze", AnalyzeRequest{Text: &text}).Code)

	w = do(t, s, http.MethodGet, "/sessions/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="syllabus-analysis.json"`, w.Header().Get("Content-Disposition"))
	var exported types.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
	assert.Equal(t, *testResult(), exported)

	w = do(t, s, http.MethodPost, "/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, session.StepUpload, snap.Step)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Input)
	assert.Empty(t, snap.Error)
}

func uploadRequest(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, succeed())
	id := createSession(t, s).ID

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "/sessions/"+id+"/upload", "course.md", "# Course\r\nWeek 1"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "course.md", resp.File.Name)
	assert.Equal(t, "text/markdown", resp.File.Type)
	assert.Equal(t, "# Course\nWeek 1", resp.Session.Input)
}

func TestUpload_Unsupported(t *testing.T) {
	s := newTestServer(t, succeed())
	id := createSession(t, s).ID

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "/sessions/"+id+"/upload", "course.pdf", "%PDF"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), ".pdf")
}

func TestUpload_MissingFile(t *testing.T) {
	s := newTestServer(t, succeed())
	id := createSession(t, s).ID

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/upload", strings.NewReader(""))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	s := New(Config{
		Session: session.Config{PhaseInterval: 5 * time.Millisecond},
		RateLimit: &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  100,
			DefaultWindow: time.Minute,
			Rules: []ratelimit.Rule{
				{
					Quota:  ratelimit.QuotaSessions,
					Routes: []ratelimit.Route{{Method: "POST", Pattern: "/sessions"}},
					Limit:  1,
					Window: time.Hour,
				},
			},
		},
		Logger: zaptest.NewLogger(t),
	}, succeed())
	t.Cleanup(s.Close)

	w := do(t, s, http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = do(t, s, http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ratelimit.QuotaSessions, body["quota"])

	// Health checks are never limited
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
	}
}

func TestExtractClientID(t *testing.T) {
	s := &Server{}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", s.extractClientID(req))

	req.RemoteAddr = "not-an-addr"
	assert.Equal(t, "not-an-addr", s.extractClientID(req))
}
