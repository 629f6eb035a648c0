package session

// Step is the stage the session is in.
type Step string

// Session steps. PROCESSING returns to UPLOAD on failure; any step returns to UPLOAD on reset.
const (
	StepUpload     Step = "UPLOAD"
	StepProcessing Step = "PROCESSING"
	StepResults    Step = "RESULTS"
)

// Phase is a cosmetic progress label shown while processing. Phases do not
// track the real request; they advance on a timer.
type Phase string

// Processing phases in display order.
const (
	PhaseParsing            Phase = "Parsing Syllabus Data..."
	PhaseExtraction         Phase = "NLP Topic & Keyword Extraction..."
	PhaseSkillMapping       Phase = "Subject-to-Skill Mapping..."
	PhaseIndustryComparison Phase = "Industry Dataset Comparison..."
	PhaseImportance         Phase = "Calculating Subject Importance Weights..."
)

var phases = []Phase{
	PhaseParsing,
	PhaseExtraction,
	PhaseSkillMapping,
	PhaseIndustryComparison,
	PhaseImportance,
}

// Phases returns the processing phases in order.
func Phases() []Phase {
	return append([]Phase(nil), phases...)
}

// Short returns the label without its trailing ellipsis.
func (p Phase) Short() string {
	s := string(p)
	if len(s) > 3 && s[len(s)-3:] == "..." {
		return s[:len(s)-3]
	}
	return s
}

// Progress returns the fraction of the bar filled at phase index idx.
func Progress(idx int) float64 {
	if idx < 0 {
		return 0
	}
	if idx >= len(phases) {
		return 1
	}
	return float64(idx+1) / float64(len(phases))
}
