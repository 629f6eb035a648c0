// Package schemas holds the JSON Schema documents shipped with the analyzer.
package schemas

import "embed"

// AnalysisResultFile is the schema file describing the model's analysis JSON.
const AnalysisResultFile = "analysis_result.schema.json"

//go:embed *.schema.json
var Files embed.FS

// AnalysisResult returns the analysis result schema document.
func AnalysisResult() string {
	data, err := Files.ReadFile(AnalysisResultFile)
	if err != nil {
		// embedded at build time; a read failure means the binary is broken
		panic(err)
	}
	return string(data)
}
