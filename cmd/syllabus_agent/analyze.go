package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/syllabus-analyzer/internal/analysis"
	"github.com/jonathan/syllabus-analyzer/internal/config"
	"github.com/jonathan/syllabus-analyzer/internal/ingestion"
	"github.com/jonathan/syllabus-analyzer/internal/observability"
	"github.com/jonathan/syllabus-analyzer/internal/session"
	"github.com/jonathan/syllabus-analyzer/internal/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a syllabus and print its industry-alignment dashboard",
	Long: `Analyze a syllabus (.txt or .md) against current industry demand.

The syllabus is read from --in, the built-in sample (--sample), or stdin.
The dashboard is printed to stdout; --json prints the raw result instead,
and --out writes the raw result to a file.`,
	RunE: runAnalyze,
}

// analyzeOptions holds the flag values for one analyze invocation.
type analyzeOptions struct {
	InputFile  string
	Sample     bool
	OutputFile string
	JSON       bool
	ConfigFile string
	APIKey     string
	Model      string
	Tier       string
	NoColor    bool
}

var analyzeOpts analyzeOptions

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOpts.InputFile, "in", "i", "", "Path to syllabus file (.txt or .md)")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.Sample, "sample", false, "Analyze the built-in sample syllabus")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.OutputFile, "out", "o", "", "Write the raw result JSON to this file")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.JSON, "json", false, "Print the raw result JSON instead of the dashboard")
	analyzeCmd.Flags().StringVar(&analyzeOpts.ConfigFile, "config", "", "Path to JSON config file")
	analyzeCmd.Flags().StringVar(&analyzeOpts.APIKey, "api-key", "", "Gemini API key (overrides GEMINI_API_KEY env var)")
	analyzeCmd.Flags().StringVar(&analyzeOpts.Model, "model", "", "Gemini model name (overrides config and GEMINI_MODEL)")
	analyzeCmd.Flags().StringVar(&analyzeOpts.Tier, "tier", "", "Model tier: lite, standard or advanced")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.NoColor, "no-color", false, "Disable colored output")
	analyzeCmd.MarkFlagsMutuallyExclusive("in", "sample")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(analyzeOpts.ConfigFile)
	if err != nil {
		return err
	}
	if analyzeOpts.APIKey != "" {
		cfg.APIKey = analyzeOpts.APIKey
	}
	if analyzeOpts.Model != "" {
		cfg.Model = analyzeOpts.Model
	}
	if analyzeOpts.Tier != "" {
		cfg.Tier = analyzeOpts.Tier
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.APIKey == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s is not set; the analysis request will likely fail.\n", config.EnvAPIKey)
	}

	runner, closeRunner := newRunner(cmd.Context(), cfg, logger)
	defer closeRunner()

	return analyze(cmd.Context(), analyzeOpts, sessionConfig(cfg), runner, logger,
		cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// analyze runs one session end to end and renders the outcome.
func analyze(ctx context.Context, opts analyzeOptions, cfg session.Config, runner session.Runner,
	logger *zap.Logger, stdin io.Reader, stdout, stderr io.Writer) error {
	text, err := readSyllabus(opts, stdin, logger)
	if err != nil {
		return err
	}

	sess := session.New(runner, cfg, logger)
	stopProgress := showProgress(sess, stderr)
	result, err := sess.Start(ctx, text)
	stopProgress()

	printer := observability.NewPrinter(stdout)
	printer.SetColor(!opts.NoColor && !opts.JSON && !color.NoColor && isTerminal(stdout))

	if err != nil {
		msg := sess.Snapshot().Error
		if msg == "" {
			msg = err.Error()
		}
		observability.NewPrinter(stderr).PrintError(msg)
		return fmt.Errorf("analysis failed: %w", err)
	}

	if opts.OutputFile != "" {
		if err := writeResult(opts.OutputFile, result); err != nil {
			return err
		}
	}

	if opts.JSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	}

	printer.PrintAnalysis(result)
	if opts.OutputFile != "" {
		printer.PrintSuccess("Raw data written to " + opts.OutputFile)
	}
	return nil
}

// readSyllabus picks the input source: the sample, a file, or stdin.
func readSyllabus(opts analyzeOptions, stdin io.Reader, logger *zap.Logger) (string, error) {
	if opts.Sample {
		return analysis.SampleSyllabus(), nil
	}

	var (
		syllabus *ingestion.Syllabus
		err      error
	)
	if opts.InputFile != "" {
		syllabus, err = ingestion.ReadSyllabusFile(opts.InputFile)
	} else {
		syllabus, err = ingestion.ReadSyllabus("stdin.txt", stdin)
	}
	if err != nil {
		return "", err
	}

	meta := syllabus.Metadata()
	logger.Debug("syllabus loaded",
		zap.String("file", meta.Name),
		zap.String("type", meta.Type),
		zap.Int("bytes", meta.Bytes),
		zap.String("sha256", meta.Hash),
	)
	return syllabus.Content, nil
}

// showProgress follows the session's phase events: a spinner on a terminal,
// one line per phase otherwise. The returned function stops it and waits
// for the event loop to exit.
func showProgress(sess *session.Session, out io.Writer) func() {
	total := len(session.Phases())
	events, unsubscribe := sess.Subscribe()

	var s *spinner.Spinner
	if isTerminal(out) {
		s = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(out))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Type != session.EventPhase {
				continue
			}
			if s == nil {
				fmt.Fprintf(out, "[%d/%d] %s\n", ev.PhaseIndex+1, total, ev.Phase) //nolint:errcheck
				continue
			}
			s.Lock()
			s.Suffix = fmt.Sprintf(" [%d/%d] %s", ev.PhaseIndex+1, total, ev.Phase.Short())
			s.Unlock()
			s.Start()
		}
	}()

	return func() {
		unsubscribe()
		<-done
		if s != nil {
			s.Stop()
		}
	}
}

func writeResult(path string, result *types.AnalysisResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
