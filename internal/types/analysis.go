// Package types provides type definitions for structured data used throughout the syllabus analyzer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"slices"

	"github.com/go-playground/validator/v10"
)

// SkillDisplayLimit is the number of mapped skills shown before the "+N more" badge.
const SkillDisplayLimit = 3

var validate = validator.New()

// AnalysisResult is the industry-alignment report returned for one syllabus.
// Field names follow the JSON contract requested from the remote model.
type AnalysisResult struct {
	OverallScore             int                 `json:"overallScore" validate:"min=0,max=100"`
	Subjects                 []SubjectImportance `json:"subjects" validate:"required,dive"`
	ExtractedTopics          []string            `json:"extractedTopics" validate:"required"`
	IndustryAlignmentSummary string              `json:"industryAlignmentSummary"`
	TopSkillsCovered         []string            `json:"topSkillsCovered" validate:"required"`
}

// SubjectImportance is one curriculum area with its relative weight.
type SubjectImportance struct {
	SubjectName       string   `json:"subjectName" validate:"required"`
	ImportanceScore   float64  `json:"importanceScore" validate:"gte=0"`
	IndustryRelevance string   `json:"industryRelevance"`
	MappedSkills      []string `json:"mappedSkills" validate:"required"`
}

// Summary holds the headline figures shown above the subject breakdown.
type Summary struct {
	ReadinessScore  int     `json:"readinessScore"`
	SkillsMapped    int     `json:"skillsMapped"`
	ActiveSubjects  int     `json:"activeSubjects"`
	ImportanceTotal float64 `json:"importanceTotal"`
}

// Validate checks the struct tags on the result and every subject.
func (r *AnalysisResult) Validate() error {
	return validate.Struct(r)
}

// ImportanceTotal returns the sum of all subject importance scores.
func (r *AnalysisResult) ImportanceTotal() float64 {
	var total float64
	for _, s := range r.Subjects {
		total += s.ImportanceScore
	}
	return total
}

// Summary computes the KPI block for the dashboard.
func (r *AnalysisResult) Summary() Summary {
	return Summary{
		ReadinessScore:  r.OverallScore,
		SkillsMapped:    len(r.TopSkillsCovered),
		ActiveSubjects:  len(r.Subjects),
		ImportanceTotal: r.ImportanceTotal(),
	}
}

// Clone returns a deep copy so callers can hand results out without sharing
// slices. Empty slices stay empty rather than becoming nil, so the copy
// encodes the same JSON as the original.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Subjects = slices.Clone(r.Subjects)
	for i := range out.Subjects {
		out.Subjects[i].MappedSkills = slices.Clone(out.Subjects[i].MappedSkills)
	}
	out.ExtractedTopics = slices.Clone(r.ExtractedTopics)
	out.TopSkillsCovered = slices.Clone(r.TopSkillsCovered)
	return &out
}

// DisplaySkills returns at most limit skills and how many were left out.
// The underlying slice is never truncated.
func (s SubjectImportance) DisplaySkills(limit int) (shown []string, hidden int) {
	if limit <= 0 || len(s.MappedSkills) <= limit {
		return s.MappedSkills, 0
	}
	return s.MappedSkills[:limit], len(s.MappedSkills) - limit
}
