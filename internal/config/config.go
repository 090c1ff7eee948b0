// ABOUTME: Configuration loading and parsing for toolgate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete toolgate configuration.
type Config struct {
	Server    ServerSettings    `yaml:"server"`
	Registry  RegistrySettings  `yaml:"registry"`
	Pool      PoolSettings      `yaml:"pool"`
	Retry     RetrySettings     `yaml:"retry"`
	Breaker   BreakerSettings   `yaml:"breaker"`
	Model     ModelSettings     `yaml:"model"`
	Query     QuerySettings     `yaml:"query"`
	Augmenter AugmenterSettings `yaml:"augmenter"`
	Logging   LoggingSettings   `yaml:"logging"`
}

// ServerSettings holds the HTTP listener configuration.
type ServerSettings struct {
	HTTPAddr string `yaml:"http_addr"`
}

// RegistrySettings points at the backend registry file.
type RegistrySettings struct {
	Path string `yaml:"path"`
}

// PoolSettings holds connection pool bounds and timing.
type PoolSettings struct {
	MaxConnectionsPerServer int           `yaml:"max_connections_per_server"`
	HealthCheckInterval     time.Duration `yaml:"-"`
	ConnectTimeout          time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HealthCheckIntervalRaw string `yaml:"health_check_interval"`
	ConnectTimeoutRaw      string `yaml:"connect_timeout"`
}

// RetrySettings holds the session-creation retry schedule.
type RetrySettings struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"-"`
	MaxDelay    time.Duration `yaml:"-"`

	BaseDelayRaw string `yaml:"base_delay"`
	MaxDelayRaw  string `yaml:"max_delay"`
}

// BreakerSettings holds the per-backend circuit breaker policy.
type BreakerSettings struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"-"`

	CooldownRaw string `yaml:"cooldown"`
}

// ModelSettings holds the language-model completion API configuration.
type ModelSettings struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// QuerySettings holds orchestration bounds.
type QuerySettings struct {
	MaxTurns              int           `yaml:"max_turns"`
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	RequestTimeout        time.Duration `yaml:"-"`

	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// AugmenterSettings configures the optional knowledge-retrieval step.
// When enabled, the orchestrator consults the named backend's search tool
// before the first model call.
type AugmenterSettings struct {
	Enabled             bool    `yaml:"enabled"`
	Server              string  `yaml:"server"`
	Tool                string  `yaml:"tool"`
	MaxResults          int     `yaml:"max_results"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// LoggingSettings holds logging configuration.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config populated with the defaults a loaded file is
// merged on top of.
func Default() *Config {
	return &Config{
		Server:   ServerSettings{HTTPAddr: ":8080"},
		Registry: RegistrySettings{Path: "mcp.json"},
		Pool: PoolSettings{
			MaxConnectionsPerServer: 5,
			HealthCheckInterval:     60 * time.Second,
			ConnectTimeout:          30 * time.Second,
		},
		Retry: RetrySettings{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
		},
		Breaker: BreakerSettings{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Model: ModelSettings{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4",
			MaxTokens: 1000,
			Timeout:   30 * time.Second,
		},
		Query: QuerySettings{
			MaxTurns:              5,
			MaxConcurrentRequests: 100,
			RequestTimeout:        300 * time.Second,
		},
		Augmenter: AugmenterSettings{
			Server:              "rag-knowledge-base",
			Tool:                "search_knowledge",
			MaxResults:          3,
			SimilarityThreshold: 0.7,
		},
		Logging: LoggingSettings{Level: "info", Format: "json"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path is required")
	}
	if c.Pool.MaxConnectionsPerServer < 1 {
		return fmt.Errorf("pool.max_connections_per_server must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be at least 1")
	}
	if c.Query.MaxTurns < 1 {
		return fmt.Errorf("query.max_turns must be at least 1")
	}
	if c.Query.MaxConcurrentRequests < 1 {
		return fmt.Errorf("query.max_concurrent_requests must be at least 1")
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("model.base_url is required")
	}
	if c.Augmenter.Enabled && c.Augmenter.Server == "" {
		return fmt.Errorf("augmenter.server is required when the augmenter is enabled")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{cfg.Pool.HealthCheckIntervalRaw, "pool.health_check_interval", &cfg.Pool.HealthCheckInterval},
		{cfg.Pool.ConnectTimeoutRaw, "pool.connect_timeout", &cfg.Pool.ConnectTimeout},
		{cfg.Retry.BaseDelayRaw, "retry.base_delay", &cfg.Retry.BaseDelay},
		{cfg.Retry.MaxDelayRaw, "retry.max_delay", &cfg.Retry.MaxDelay},
		{cfg.Breaker.CooldownRaw, "breaker.cooldown", &cfg.Breaker.Cooldown},
		{cfg.Model.TimeoutRaw, "model.timeout", &cfg.Model.Timeout},
		{cfg.Query.RequestTimeoutRaw, "query.request_timeout", &cfg.Query.RequestTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
