package analysis

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/jonathan/syllabus-analyzer/internal/llm"
	"github.com/jonathan/syllabus-analyzer/internal/observability"
	"github.com/jonathan/syllabus-analyzer/internal/schemas"
	"github.com/jonathan/syllabus-analyzer/internal/types"
)

// ImportanceTarget is the total every subject allocation is scaled to.
const ImportanceTarget = 100.0

// importanceTolerance is how far a total may drift from the target before rescaling.
const importanceTolerance = 0.1

type normalizeConfig struct {
	rounding RoundingStrategy
}

// NormalizeOption configures Normalize.
type NormalizeOption func(*normalizeConfig)

// WithRounding selects the rounding strategy used when scores are rescaled.
func WithRounding(strategy RoundingStrategy) NormalizeOption {
	return func(c *normalizeConfig) {
		c.rounding = strategy
	}
}

// Normalize turns raw model output into a validated AnalysisResult whose
// importance scores are rebalanced toward a total of 100.
// Every failure is a *MalformedResponseError; no partial result is returned.
func Normalize(raw string, opts ...NormalizeOption) (*types.AnalysisResult, error) {
	cfg := normalizeConfig{rounding: RoundingProportional}
	for _, opt := range opts {
		opt(&cfg)
	}

	text := llm.CleanJSONBlock(raw)

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, &MalformedResponseError{Cause: err}
	}

	if err := schemas.ValidateAnalysisResult(text); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return nil, &MalformedResponseError{Cause: err, Fields: validationErr.Errors}
		}
		return nil, &MalformedResponseError{Cause: err}
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, &MalformedResponseError{Cause: err}
	}
	if err := result.Validate(); err != nil {
		return nil, &MalformedResponseError{Cause: err}
	}

	if Rebalance(result.Subjects, cfg.rounding) {
		observability.ScoresRescaledTotal.WithLabelValues(string(cfg.rounding)).Inc()
	}
	return &result, nil
}

// Rebalance rescales importance scores in place so they sum to roughly 100.
// Scores already within 0.1 of 100 and all-zero totals are left untouched.
// It reports whether any score was changed.
func Rebalance(subjects []types.SubjectImportance, strategy RoundingStrategy) bool {
	scores := make([]float64, len(subjects))
	var total float64
	for i, s := range subjects {
		scores[i] = s.ImportanceScore
		total += s.ImportanceScore
	}

	if total <= 0 || math.Abs(total-ImportanceTarget) <= importanceTolerance {
		return false
	}

	var rescaled []float64
	switch strategy {
	case RoundingLargestRemainder:
		rescaled = rescaleLargestRemainder(scores, total)
	default:
		rescaled = rescaleProportional(scores, total)
	}

	for i := range subjects {
		subjects[i].ImportanceScore = rescaled[i]
	}
	return true
}
