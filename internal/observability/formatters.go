// Package observability provides logging, metrics and the text dashboard for analysis results.
package observability

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/jonathan/syllabus-analyzer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// barWidth is the width of a 100% importance bar
	barWidth = 30
	// maxTopicsToShow is the number of extracted topics listed before "... and N more"
	maxTopicsToShow = 10
)

// Printer renders analysis results as text.
type Printer struct {
	out   io.Writer
	title *color.Color
	good  *color.Color
	warn  *color.Color
}

// NewPrinter creates a Printer that writes to the given writer without color.
func NewPrinter(out io.Writer) *Printer {
	p := &Printer{
		out:   out,
		title: color.New(color.FgCyan, color.Bold),
		good:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
	}
	p.SetColor(false)
	return p
}

// SetColor turns ANSI colors on or off.
func (p *Printer) SetColor(enabled bool) {
	for _, c := range []*color.Color{p.title, p.good, p.warn} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", p.title.Sprint(pad(title, boxWidth-4)))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(line, boxWidth-4), boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintAnalysis renders the full dashboard: KPIs, subject importance, topics and summary.
func (p *Printer) PrintAnalysis(result *types.AnalysisResult) {
	if result == nil {
		return
	}
	p.PrintSummary(result)
	p.PrintSubjects(result)
	p.PrintTopics(result)
	p.PrintAlignment(result)
}

// PrintSummary outputs the headline figures.
func (p *Printer) PrintSummary(result *types.AnalysisResult) {
	s := result.Summary()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Readiness Score:  %d%%\n", s.ReadinessScore))
	sb.WriteString(fmt.Sprintf("Skills Mapped:    %d\n", s.SkillsMapped))
	sb.WriteString(fmt.Sprintf("Active Subjects:  %d\n", s.ActiveSubjects))
	sb.WriteString(fmt.Sprintf("Importance Total: %s", formatScore(s.ImportanceTotal)))

	p.printBox("EFFECTIVENESS ANALYSIS", sb.String())
}

// PrintSubjects outputs each subject with an importance bar and its mapped skills.
func (p *Printer) PrintSubjects(result *types.AnalysisResult) {
	if len(result.Subjects) == 0 {
		p.printBox("RELATIVE SUBJECT IMPORTANCE", "No subjects identified")
		return
	}

	var sb strings.Builder
	for i, subject := range result.Subjects {
		sb.WriteString(fmt.Sprintf("%s  %s\n", pad(truncate(subject.SubjectName, 28), 28), bar(subject.ImportanceScore)))
		sb.WriteString(fmt.Sprintf("    Weight: %s%%\n", formatScore(subject.ImportanceScore)))
		if subject.IndustryRelevance != "" {
			sb.WriteString(fmt.Sprintf("    Relevance: %s\n", subject.IndustryRelevance))
		}
		shown, hidden := subject.DisplaySkills(types.SkillDisplayLimit)
		if len(shown) > 0 {
			sb.WriteString(fmt.Sprintf("    Skills: %s", strings.Join(shown, ", ")))
			if hidden > 0 {
				sb.WriteString(fmt.Sprintf(" +%d more", hidden))
			}
			sb.WriteString("\n")
		}
		if i < len(result.Subjects)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("RELATIVE SUBJECT IMPORTANCE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTopics outputs extracted topics and the top skills covered.
func (p *Printer) PrintTopics(result *types.AnalysisResult) {
	var sb strings.Builder

	sb.WriteString("Extracted Topics:\n")
	count := min(len(result.ExtractedTopics), maxTopicsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", result.ExtractedTopics[i]))
	}
	if len(result.ExtractedTopics) > maxTopicsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(result.ExtractedTopics)-maxTopicsToShow))
	}
	if len(result.ExtractedTopics) == 0 {
		sb.WriteString("  (none)\n")
	}

	sb.WriteString("\nTop Skills Covered:\n")
	for _, skill := range result.TopSkillsCovered {
		sb.WriteString(fmt.Sprintf("  ✓ %s\n", skill))
	}
	if len(result.TopSkillsCovered) == 0 {
		sb.WriteString("  (none)\n")
	}

	p.printBox("TOPICS & SKILLS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAlignment outputs the narrative summary, wrapped to the box width.
func (p *Printer) PrintAlignment(result *types.AnalysisResult) {
	summary := strings.TrimSpace(result.IndustryAlignmentSummary)
	if summary == "" {
		summary = "(no summary provided)"
	}
	p.printBox("INDUSTRY ALIGNMENT", wrap(summary, boxWidth-4))
}

// PrintSuccess prints a green check line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintSuccess(msg string) {
	p.good.Fprintf(p.out, "✓ %s\n", msg)
}

// PrintError prints the analysis error banner.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintError(msg string) {
	p.warn.Fprintf(p.out, "✗ Analysis Error\n")
	fmt.Fprintf(p.out, "  %s\n", msg)
}

func bar(score float64) string {
	filled := int(math.Round(math.Max(0, math.Min(score, 100)) / 100 * barWidth))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func formatScore(score float64) string {
	if score == math.Trunc(score) {
		return fmt.Sprintf("%.0f", score)
	}
	return fmt.Sprintf("%.1f", score)
}

func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

func wrap(text string, width int) string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && utf8.RuneCountInString(line.String())+1+utf8.RuneCountInString(word) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
