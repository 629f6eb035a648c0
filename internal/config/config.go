// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/syllabus-analyzer/internal/observability"
)

// Environment variables consulted when the config file and flags leave a value empty.
const (
	EnvAPIKey       = "GEMINI_API_KEY"
	EnvAPIKeyLegacy = "API_KEY"
	EnvModel        = "GEMINI_MODEL"
)

// Model tiers accepted in the "tier" field.
const (
	TierLite     = "lite"
	TierStandard = "standard"
	TierAdvanced = "advanced"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Remote analysis
	APIKey   string `json:"api_key,omitempty"`  // Gemini API key
	Tier     string `json:"tier,omitempty"`     // lite, standard or advanced
	Model    string `json:"model,omitempty"`    // overrides the model of the selected tier
	Rounding string `json:"rounding,omitempty"` // "proportional" or "largest_remainder"

	// Progress simulation
	PhaseInterval string `json:"phase_interval,omitempty"` // Go duration, e.g. "1500ms"
	MinDisplay    string `json:"min_display,omitempty"`    // Go duration, e.g. "2s"

	// Server
	Port int `json:"port,omitempty"`

	// Logging
	LogLevel  string `json:"log_level,omitempty"`  // debug, info, warn, error
	LogFormat string `json:"log_format,omitempty"` // console or json
}

// Defaults returns the values used when nothing else is configured.
func Defaults() Config {
	return Config{
		Tier:          TierStandard,
		Rounding:      "proportional",
		PhaseInterval: "1500ms",
		MinDisplay:    "2s",
		Port:          8080,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Empty fields are allowed; they are filled by MergeWithDefaults.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}

	switch c.Rounding {
	case "", "proportional", "largest_remainder":
	default:
		return fmt.Errorf("config error: 'rounding' must be 'proportional' or 'largest_remainder', got %q", c.Rounding)
	}

	switch c.Tier {
	case "", TierLite, TierStandard, TierAdvanced:
	default:
		return fmt.Errorf("config error: 'tier' must be 'lite', 'standard' or 'advanced', got %q", c.Tier)
	}

	if _, err := observability.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config error: 'log_level': %w", err)
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("config error: 'log_format' must be 'console' or 'json', got %q", c.LogFormat)
	}

	if d, err := parseDuration(c.PhaseInterval); err != nil {
		return fmt.Errorf("config error: 'phase_interval': %w", err)
	} else if c.PhaseInterval != "" && d <= 0 {
		return fmt.Errorf("config error: 'phase_interval' must be positive")
	}
	if d, err := parseDuration(c.MinDisplay); err != nil {
		return fmt.Errorf("config error: 'min_display': %w", err)
	} else if d < 0 {
		return fmt.Errorf("config error: 'min_display' must be non-negative")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Tier == "" {
		result.Tier = defaults.Tier
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.Rounding == "" {
		result.Rounding = defaults.Rounding
	}
	if result.PhaseInterval == "" {
		result.PhaseInterval = defaults.PhaseInterval
	}
	if result.MinDisplay == "" {
		result.MinDisplay = defaults.MinDisplay
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}

	return result
}

// ApplyEnv fills the API key and model from the environment when they are unset.
func (c *Config) ApplyEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAPIKey)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAPIKeyLegacy)
	}
	if c.Model == "" {
		c.Model = os.Getenv(EnvModel)
	}
}

// PhaseIntervalDuration returns PhaseInterval parsed, or zero when unset.
func (c *Config) PhaseIntervalDuration() time.Duration {
	d, _ := parseDuration(c.PhaseInterval)
	return d
}

// MinDisplayDuration returns MinDisplay parsed, or zero when unset.
func (c *Config) MinDisplayDuration() time.Duration {
	d, _ := parseDuration(c.MinDisplay)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
