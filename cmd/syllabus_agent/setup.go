package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/syllabus-analyzer/internal/analysis"
	"github.com/jonathan/syllabus-analyzer/internal/config"
	"github.com/jonathan/syllabus-analyzer/internal/llm"
	"github.com/jonathan/syllabus-analyzer/internal/session"
	"github.com/jonathan/syllabus-analyzer/internal/types"
)

// loadConfig reads the optional config file, fills empty values from the
// environment and then from defaults, and validates the result.
func loadConfig(path string) (config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

// sessionConfig converts the configured timings for the session package.
func sessionConfig(cfg config.Config) session.Config {
	return session.Config{
		PhaseInterval: cfg.PhaseIntervalDuration(),
		MinDisplay:    cfg.MinDisplayDuration(),
		Sample:        analysis.SampleSyllabus(),
	}
}

// llmSettings selects the model tier and applies a model override to it.
func llmSettings(cfg config.Config) (*llm.Config, llm.ModelTier) {
	tier := llm.ModelTier(cfg.Tier)
	if tier == "" {
		tier = llm.TierStandard
	}
	llmConfig := llm.DefaultConfig()
	if cfg.Model != "" {
		llmConfig = llmConfig.WithModel(tier, cfg.Model)
	}
	return llmConfig, tier
}

// newRunner builds the Gemini-backed analyzer. If the client cannot be
// created, every run fails with a RemoteServiceError carrying the cause.
// The returned function releases the client.
func newRunner(ctx context.Context, cfg config.Config, logger *zap.Logger) (session.Runner, func()) {
	strategy, err := analysis.ParseRoundingStrategy(cfg.Rounding)
	if err != nil {
		strategy = analysis.RoundingProportional
	}

	llmConfig, tier := llmSettings(cfg)

	client, err := llm.NewClient(ctx, llmConfig, cfg.APIKey)
	if err != nil {
		logger.Error("failed to create LLM client", zap.Error(err))
		model := llmConfig.GetModel(tier)
		failing := session.RunnerFunc(func(_ context.Context, _ string) (*types.AnalysisResult, error) {
			return nil, &analysis.RemoteServiceError{Model: model, Cause: fmt.Errorf("failed to create client: %w", err)}
		})
		return failing, func() {}
	}

	analyzer := analysis.NewAnalyzer(client,
		analysis.WithTier(tier),
		analysis.WithRoundingStrategy(strategy),
		analysis.WithLogger(logger),
	)
	return analyzer, func() { _ = client.Close() }
}
