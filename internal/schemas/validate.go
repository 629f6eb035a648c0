// Package schemas provides JSON Schema validation for model responses.
package schemas

import (
	"fmt"
	"strings"
	"sync"

	schemafiles "github.com/jonathan/syllabus-analyzer/schemas"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

var (
	analysisSchemaOnce sync.Once
	analysisSchema     *gojsonschema.Schema
	analysisSchemaErr  error
)

// ValidateAnalysisResult validates a JSON document against the embedded
// analysis result schema. The compiled schema is reused across calls.
func ValidateAnalysisResult(jsonContent string) error {
	analysisSchemaOnce.Do(func() {
		loader := gojsonschema.NewStringLoader(schemafiles.AnalysisResult())
		analysisSchema, analysisSchemaErr = gojsonschema.NewSchema(loader)
	})
	if analysisSchemaErr != nil {
		return &SchemaLoadError{
			Path:    schemafiles.AnalysisResultFile,
			Message: "schema compilation failed",
			Cause:   analysisSchemaErr,
		}
	}

	result, err := analysisSchema.Validate(gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		// The document could not be loaded at all (not JSON)
		return &ValidationError{Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	return toValidationError(result)
}

func toValidationError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
