package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/linnemanlabs/sieve/internal/triage"
)

// Config adds sieve-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds            int
	ShutdownBudgetSeconds   int
	APIPort                 int
	APIToken                string
	ClaudeAPIKey            string
	ClaudeModel             string
	InferenceTimeoutSeconds int
	BatchSize               int
	BatchDelayMs            int
	Verbose                 bool
	DatabaseURL             string
	DBSlowQueryMs           int
	RedisAddr               string
	VIPRedisKey             string
	VIPSenders              string
	VIPFile                 string
	SlackWebhookURL         string
	NotifyMinPriority       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token(s) for the API, comma-separated to allow rotation")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.IntVar(&c.InferenceTimeoutSeconds, "inference-timeout-seconds", 15, "per-item inference timeout in seconds (1..120)")
	fs.IntVar(&c.BatchSize, "batch-size", 5, "items categorized concurrently per chunk (1..50)")
	fs.IntVar(&c.BatchDelayMs, "batch-delay-ms", 500, "pause between chunks in milliseconds, 0 disables (0..60000)")
	fs.BoolVar(&c.Verbose, "verbose", false, "log prompts and raw model responses")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.IntVar(&c.DBSlowQueryMs, "db-slow-query-ms", 500, "log successful queries only when slower than this, 0 logs every query (0..60000)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis address for VIP set lookups (empty = disabled)")
	fs.StringVar(&c.VIPRedisKey, "vip-redis-key", "sieve:vip", "Redis set holding VIP addresses and user IDs")
	fs.StringVar(&c.VIPSenders, "vip-senders", "", "comma-separated VIP addresses, @domains and user IDs")
	fs.StringVar(&c.VIPFile, "vip-file", "", "YAML file with VIP addresses, domains and user IDs")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for run digests")
	fs.StringVar(&c.NotifyMinPriority, "notify-min-priority", "P1", "lowest priority listed in run digests (P0..P3)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// API is never served unauthenticated
	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	// Claude API key is required for LLM access
	if c.ClaudeAPIKey == "" {
		errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
	}

	// Claude model is required for LLM access
	if c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required"))
	}

	if c.InferenceTimeoutSeconds < 1 || c.InferenceTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid INFERENCE_TIMEOUT_SECONDS %d (must be 1..120)", c.InferenceTimeoutSeconds))
	}
	if c.BatchSize < 1 || c.BatchSize > 50 {
		errs = append(errs, fmt.Errorf("invalid BATCH_SIZE %d (must be 1..50)", c.BatchSize))
	}
	if c.BatchDelayMs < 0 || c.BatchDelayMs > 60000 {
		errs = append(errs, fmt.Errorf("invalid BATCH_DELAY_MS %d (must be 0..60000)", c.BatchDelayMs))
	}
	if c.DBSlowQueryMs < 0 || c.DBSlowQueryMs > 60000 {
		errs = append(errs, fmt.Errorf("invalid DB_SLOW_QUERY_MS %d (must be 0..60000)", c.DBSlowQueryMs))
	}

	// Redis lookups need a set to look in
	if c.RedisAddr != "" && c.VIPRedisKey == "" {
		errs = append(errs, errors.New("VIP_REDIS_KEY is required when REDIS_ADDR is set"))
	}

	if c.MinPriority().Rank() > triage.P3.Rank() {
		errs = append(errs, fmt.Errorf("invalid NOTIFY_MIN_PRIORITY %q (must be P0..P3)", c.NotifyMinPriority))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// InferenceTimeout returns the per-item inference timeout.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutSeconds) * time.Second
}

// BatchDelay returns the pause between chunks.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// SlowQueryThreshold returns the duration below which successful queries are not logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.DBSlowQueryMs) * time.Millisecond
}

// MinPriority returns the configured digest threshold as a tier.
func (c *Config) MinPriority() triage.Tier {
	return triage.Tier(c.NotifyMinPriority)
}
