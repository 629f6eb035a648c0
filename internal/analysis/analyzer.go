// Package analysis runs the remote curriculum analysis and normalizes its result.
package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/syllabus-analyzer/internal/llm"
	"github.com/jonathan/syllabus-analyzer/internal/observability"
	"github.com/jonathan/syllabus-analyzer/internal/prompts"
	"github.com/jonathan/syllabus-analyzer/internal/types"
)

const (
	promptFile = "analysis.json"
	promptKey  = "analyze-curriculum"
	sampleKey  = "sample-syllabus"
)

// Analyzer sends a syllabus to the model in one call and normalizes the answer.
type Analyzer struct {
	client   llm.Client
	tier     llm.ModelTier
	rounding RoundingStrategy
	logger   *zap.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTier selects the model tier used for the call.
func WithTier(tier llm.ModelTier) Option {
	return func(a *Analyzer) { a.tier = tier }
}

// WithRoundingStrategy sets the rounding used when scores are rebalanced.
func WithRoundingStrategy(strategy RoundingStrategy) Option {
	return func(a *Analyzer) { a.rounding = strategy }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// NewAnalyzer creates an Analyzer over the given LLM client.
func NewAnalyzer(client llm.Client, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:   client,
		tier:     llm.TierStandard,
		rounding: RoundingProportional,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = observability.OrNop(a.logger)
	return a
}

// BuildPrompt embeds the syllabus verbatim in the analysis instructions.
func BuildPrompt(syllabus string) string {
	return prompts.Format(prompts.MustGet(promptFile, promptKey), map[string]string{
		"Syllabus": syllabus,
	})
}

// SampleSyllabus returns the built-in example syllabus.
func SampleSyllabus() string {
	return prompts.MustGet(promptFile, sampleKey)
}

// Analyze issues exactly one model call and returns its raw text.
// There are no retries; ctx is the only bound on the call.
func (a *Analyzer) Analyze(ctx context.Context, syllabus string) (string, error) {
	if strings.TrimSpace(syllabus) == "" {
		return "", ErrEmptySyllabus
	}

	model := a.client.GetModel(a.tier)
	start := time.Now()
	text, err := a.client.GenerateJSON(ctx, BuildPrompt(syllabus), a.tier)
	observability.RemoteCallDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", &RemoteServiceError{Model: model, Cause: err}
	}

	if strings.TrimSpace(text) == "" {
		text = "{}"
	}
	return text, nil
}

// Run analyzes the syllabus and returns the normalized result.
func (a *Analyzer) Run(ctx context.Context, syllabus string) (*types.AnalysisResult, error) {
	raw, err := a.Analyze(ctx, syllabus)
	if err != nil {
		a.record(err)
		return nil, err
	}

	result, err := Normalize(raw, WithRounding(a.rounding))
	if err != nil {
		a.record(err)
		return nil, err
	}

	a.record(nil)
	a.logger.Info("analysis complete",
		zap.Int("overall_score", result.OverallScore),
		zap.Int("subjects", len(result.Subjects)),
		zap.Float64("importance_total", result.ImportanceTotal()),
	)
	return result, nil
}

func (a *Analyzer) record(err error) {
	var remoteErr *RemoteServiceError
	var malformedErr *MalformedResponseError

	switch {
	case err == nil:
		observability.AnalysesTotal.WithLabelValues(observability.OutcomeSuccess).Inc()
	case errors.As(err, &remoteErr):
		observability.AnalysesTotal.WithLabelValues(observability.OutcomeRemote).Inc()
		a.logger.Warn("remote analysis call failed", zap.String("model", remoteErr.Model), zap.Error(remoteErr.Cause))
	case errors.As(err, &malformedErr):
		observability.AnalysesTotal.WithLabelValues(observability.OutcomeMalformed).Inc()
		a.logger.Warn("model response rejected", zap.String("detail", malformedErr.Detail()))
	default:
		observability.AnalysesTotal.WithLabelValues(observability.OutcomeRejected).Inc()
	}
}
