package ratelimit

import (
	"os"
	"strconv"
	"time"
)

// Quota names. Routes in the same quota share one bucket per client.
const (
	QuotaAnalysis = "analysis"
	QuotaSessions = "sessions"
	QuotaUploads  = "uploads"
	QuotaEdits    = "edits"
	QuotaGeneral  = "general"
)

// defaultIdleTTL is how long an unused bucket is kept.
const defaultIdleTTL = time.Hour

// Route is one method and path pattern. A "*" segment matches any single
// non-empty path segment.
type Route struct {
	Method  string
	Pattern string
}

// Rule assigns a quota to a set of routes.
type Rule struct {
	Quota  string
	Routes []Route
	Limit  int           // requests per Window; zero or less means unlimited
	Window time.Duration // refill period for Limit tokens
	Burst  int           // bucket capacity; defaults to Limit
}

func (r *Rule) capacity() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return r.Limit
}

func (r *Rule) refillRate() float64 {
	if r.Window <= 0 {
		return 0
	}
	return float64(r.Limit) / r.Window.Seconds()
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled bool
	// DefaultLimit per DefaultWindow applies to routes no rule covers.
	DefaultLimit  int
	DefaultWindow time.Duration
	Rules         []Rule
	// IdleTTL is how long a bucket survives without requests. Zero means one hour.
	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

func (c *Config) defaultRule() *Rule {
	return &Rule{Quota: QuotaGeneral, Limit: c.DefaultLimit, Window: c.DefaultWindow}
}

func (c *Config) idleTTL() time.Duration {
	if c.IdleTTL > 0 {
		return c.IdleTTL
	}
	return defaultIdleTTL
}

// LoadConfig builds the configuration from RATE_LIMIT_* environment variables
// on top of DefaultRules.
func LoadConfig() *Config {
	if !getEnvBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	rules := DefaultRules()
	analysesPerHour := getEnvInt("RATE_LIMIT_ANALYSES_PER_HOUR", 0)
	if analysesPerHour > 0 {
		for i := range rules {
			if rules[i].Quota == QuotaAnalysis {
				rules[i].Limit = analysesPerHour
			}
		}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		Rules:           rules,
		IdleTTL:         getEnvDuration("RATE_LIMIT_IDLE_TTL", defaultIdleTTL),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

// DefaultRules returns the quotas for the session API. Each analysis costs a
// remote model call, so it has the tightest allowance.
func DefaultRules() []Rule {
	return []Rule{
		{
			Quota: QuotaAnalysis,
			Routes: []Route{
				{Method: "POST", Pattern: "/sessions/*/analyze"},
				{Method: "POST", Pattern: "/sessions/*/analyze/stream"},
			},
			Limit:  20,
			Window: time.Hour,
			Burst:  3,
		},
		{
			Quota:  QuotaSessions,
			Routes: []Route{{Method: "POST", Pattern: "/sessions"}},
			Limit:  60,
			Window: time.Minute,
			Burst:  10,
		},
		{
			Quota:  QuotaUploads,
			Routes: []Route{{Method: "POST", Pattern: "/sessions/*/upload"}},
			Limit:  30,
			Window: time.Minute,
			Burst:  5,
		},
		{
			Quota: QuotaEdits,
			Routes: []Route{
				{Method: "PUT", Pattern: "/sessions/*/input"},
				{Method: "POST", Pattern: "/sessions/*/sample"},
				{Method: "POST", Pattern: "/sessions/*/reset"},
			},
			Limit:  120,
			Window: time.Minute,
			Burst:  20,
		},
	}
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
