// Package session holds the state of one syllabus analysis: the input
// workspace, the UPLOAD/PROCESSING/RESULTS step, the cosmetic phase label,
// and the final result or error.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/syllabus-analyzer/internal/observability"
	"github.com/jonathan/syllabus-analyzer/internal/types"
)

// Runner performs the real analysis.
type Runner interface {
	Run(ctx context.Context, syllabus string) (*types.AnalysisResult, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, syllabus string) (*types.AnalysisResult, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, syllabus string) (*types.AnalysisResult, error) {
	return f(ctx, syllabus)
}

// Config controls the progress simulation.
type Config struct {
	// PhaseInterval is how often the phase label advances.
	PhaseInterval time.Duration
	// MinDisplay is held after a successful analysis before results are shown.
	MinDisplay time.Duration
	// Sample is the text loaded by LoadSample.
	Sample string
}

// DefaultConfig returns the timings used by the web dashboard.
func DefaultConfig() Config {
	return Config{
		PhaseInterval: 1500 * time.Millisecond,
		MinDisplay:    2000 * time.Millisecond,
	}
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	ID         string                `json:"id"`
	Step       Step                  `json:"step"`
	Phase      Phase                 `json:"phase"`
	PhaseIndex int                   `json:"phaseIndex"`
	Progress   float64               `json:"progress"`
	Input      string                `json:"input"`
	Result     *types.AnalysisResult `json:"result,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Session is safe for concurrent use. At most one analysis runs at a time.
type Session struct {
	id     string
	runner Runner
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	step       Step
	phaseIdx   int
	input      string
	result     *types.AnalysisResult
	errMsg     string
	generation uint64
	subs       map[int]chan Event
	nextSub    int
}

// New creates a session in the UPLOAD step.
func New(runner Runner, cfg Config, logger *zap.Logger) *Session {
	defaults := DefaultConfig()
	if cfg.PhaseInterval <= 0 {
		cfg.PhaseInterval = defaults.PhaseInterval
	}
	if cfg.MinDisplay < 0 {
		cfg.MinDisplay = 0
	}

	id := uuid.New().String()
	return &Session{
		id:     id,
		runner: runner,
		cfg:    cfg,
		logger: observability.OrNop(logger).With(zap.String("session_id", id)),
		step:   StepUpload,
		subs:   make(map[int]chan Event),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         s.id,
		Step:       s.step,
		Phase:      phases[s.phaseIdx],
		PhaseIndex: s.phaseIdx,
		Progress:   Progress(s.phaseIdx),
		Input:      s.input,
		Result:     s.result.Clone(),
		Error:      s.errMsg,
	}
}

// Input returns the text in the input workspace.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SetInput replaces the workspace text. It fails while an analysis is running.
func (s *Session) SetInput(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step == StepProcessing {
		return ErrAnalysisInFlight
	}
	s.input = text
	return nil
}

// LoadSample puts the sample syllabus into the workspace.
func (s *Session) LoadSample() error {
	return s.SetInput(s.cfg.Sample)
}

// Submit starts an analysis of the current workspace text.
func (s *Session) Submit(ctx context.Context) (*types.AnalysisResult, error) {
	return s.Start(ctx, s.Input())
}

// Start runs one analysis and blocks until it settles.
//
// Blank text is rejected with ErrEmptySyllabus before any state change.
// While the request runs, the phase label advances every PhaseInterval and
// stops at the last phase. On success the session waits MinDisplay, then
// moves to RESULTS. On failure the message is recorded, the workspace is
// cleared and the session returns to UPLOAD. If Reset is called meanwhile,
// the outcome is dropped and ErrAnalysisDiscarded is returned.
//
// Cancelling ctx does not abort the remote call or the hold; only Reset
// discards an in-flight analysis. Values on ctx are still passed to the runner.
func (s *Session) Start(ctx context.Context, syllabus string) (*types.AnalysisResult, error) {
	ctx = context.WithoutCancel(ctx)

	if strings.TrimSpace(syllabus) == "" {
		observability.AnalysesTotal.WithLabelValues(observability.OutcomeRejected).Inc()
		return nil, ErrEmptySyllabus
	}

	s.mu.Lock()
	if s.step == StepProcessing {
		s.mu.Unlock()
		return nil, ErrAnalysisInFlight
	}
	s.generation++
	gen := s.generation
	s.input = syllabus
	s.errMsg = ""
	s.result = nil
	s.phaseIdx = 0
	s.step = StepProcessing
	s.broadcastLocked(Event{Type: EventStep, Step: StepProcessing})
	s.broadcastLocked(Event{Type: EventPhase, Phase: phases[0], PhaseIndex: 0})
	s.mu.Unlock()

	s.logger.Info("analysis started", zap.Int("syllabus_bytes", len(syllabus)))
	start := time.Now()

	seqCtx, stopSequencer := context.WithCancel(ctx)
	defer stopSequencer()

	g, gctx := errgroup.WithContext(seqCtx)
	g.Go(func() error {
		s.runSequencer(gctx, gen)
		return nil
	})

	var result *types.AnalysisResult
	g.Go(func() error {
		defer stopSequencer()
		var err error
		result, err = s.runner.Run(ctx, syllabus)
		if err != nil {
			return err
		}
		s.hold()
		return nil
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Info("analysis discarded after reset", zap.Duration("elapsed", time.Since(start)))
		return nil, ErrAnalysisDiscarded
	}

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = UnexpectedErrorMessage
		}
		s.step = StepUpload
		s.errMsg = msg
		s.input = ""
		s.result = nil
		s.logger.Warn("analysis failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		s.broadcastLocked(Event{Type: EventStep, Step: StepUpload, Error: msg})
		return nil, err
	}

	s.step = StepResults
	s.result = result
	s.logger.Info("analysis finished", zap.Duration("elapsed", time.Since(start)))
	s.broadcastLocked(Event{Type: EventStep, Step: StepResults})
	return result.Clone(), nil
}

// Reset returns to UPLOAD from any step and clears the result, error and
// workspace. An in-flight request is not aborted; its outcome is discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.step = StepUpload
	s.phaseIdx = 0
	s.result = nil
	s.errMsg = ""
	s.input = ""
	s.broadcastLocked(Event{Type: EventStep, Step: StepUpload})
}

// runSequencer advances the phase label until ctx ends or the last phase is reached.
func (s *Session) runSequencer(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.cfg.PhaseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.advancePhase(gen) {
				return
			}
		}
	}
}

// advancePhase moves to the next phase. It reports whether more phases remain.
func (s *Session) advancePhase(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.step != StepProcessing {
		return false
	}
	if s.phaseIdx < len(phases)-1 {
		s.phaseIdx++
		s.broadcastLocked(Event{Type: EventPhase, Phase: phases[s.phaseIdx], PhaseIndex: s.phaseIdx})
	}
	return s.phaseIdx < len(phases)-1
}

// hold keeps the progress view up for MinDisplay.
func (s *Session) hold() {
	if s.cfg.MinDisplay > 0 {
		time.Sleep(s.cfg.MinDisplay)
	}
}
