package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/syllabus-analyzer/internal/llm"
)

type fakeClient struct {
	response string
	err      error
	calls    int
	prompts  []string
	tiers    []llm.ModelTier
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.tiers = append(f.tiers, tier)
	return f.response, f.err
}

func (f *fakeClient) GetModel(tier llm.ModelTier) string {
	return llm.DefaultConfig().GetModel(tier)
}

func (f *fakeClient) Close() error { return nil }

func TestBuildPrompt_EmbedsSyllabusVerbatim(t *testing.T) {
	syllabus := "MODULES:\n1. Data Persistence: PostgreSQL, {{.Syllabus}}"
	prompt := BuildPrompt(syllabus)

	assert.Contains(t, prompt, syllabus)
	assert.Contains(t, prompt, "SYLLABUS CONTENT:")
	assert.Contains(t, prompt, "OUTPUT FORMAT (JSON ONLY)")
}

func TestSampleSyllabus(t *testing.T) {
	assert.Contains(t, SampleSyllabus(), "COURSE SYLLABUS")
}

func TestAnalyzer_Analyze_OneCall(t *testing.T) {
	client := &fakeClient{response: `{"overallScore": 1}`}
	a := NewAnalyzer(client, WithTier(llm.TierAdvanced), WithLogger(zaptest.NewLogger(t)))

	raw, err := a.Analyze(context.Background(), "Intro to Cloud")
	require.NoError(t, err)
	assert.Equal(t, `{"overallScore": 1}`, raw)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, []llm.ModelTier{llm.TierAdvanced}, client.tiers)
	assert.Contains(t, client.prompts[0], "Intro to Cloud")
}

func TestAnalyzer_Analyze_BlankTextMakesNoCall(t *testing.T) {
	client := &fakeClient{}
	a := NewAnalyzer(client)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := a.Analyze(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptySyllabus)
	}
	assert.Zero(t, client.calls)
}

func TestAnalyzer_Analyze_RemoteFailure(t *testing.T) {
	cause := errors.New("googleapi: Error 429: quota exceeded")
	client := &fakeClient{err: cause}
	a := NewAnalyzer(client)

	_, err := a.Analyze(context.Background(), "syllabus")
	require.Error(t, err)

	var remoteErr *RemoteServiceError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "gemini-2.5-flash", remoteErr.Model)
	assert.Equal(t, cause.Error(), err.Error(), "remote message is surfaced verbatim")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, client.calls, "no retries")
}

func TestAnalyzer_Analyze_EmptyResponseBecomesEmptyObject(t *testing.T) {
	a := NewAnalyzer(&fakeClient{response: "  "})

	raw, err := a.Analyze(context.Background(), "syllabus")
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)
}

func TestAnalyzer_Run(t *testing.T) {
	client := &fakeClient{response: responseWithScores(t, 30, 30, 30)}
	a := NewAnalyzer(client, WithLogger(zaptest.NewLogger(t)))

	result, err := a.Run(context.Background(), "syllabus")
	require.NoError(t, err)
	assert.Equal(t, []float64{33, 33, 33}, scoresOf(result))
}

func TestAnalyzer_Run_LargestRemainder(t *testing.T) {
	client := &fakeClient{response: responseWithScores(t, 30, 30, 30)}
	a := NewAnalyzer(client, WithRoundingStrategy(RoundingLargestRemainder))

	result, err := a.Run(context.Background(), "syllabus")
	require.NoError(t, err)
	assert.Equal(t, []float64{34, 33, 33}, scoresOf(result))
}

func TestAnalyzer_Run_Malformed(t *testing.T) {
	a := NewAnalyzer(&fakeClient{response: "not json"}, WithLogger(zaptest.NewLogger(t)))

	result, err := a.Run(context.Background(), "syllabus")
	assert.Nil(t, result)

	var malformed *MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, MalformedResponseMessage, err.Error())
}

func TestAnalyzer_Run_EmptyResponseIsMalformed(t *testing.T) {
	a := NewAnalyzer(&fakeClient{response: ""})

	_, err := a.Run(context.Background(), "syllabus")
	var malformed *MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.NotEmpty(t, malformed.Fields)
}
