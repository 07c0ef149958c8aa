package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for refdata-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (database password, LLM API key) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Matcher holds process-level matcher defaults. These seed the persisted
	// match settings row on first start; afterwards the row is authoritative.
	Matcher MatcherConfig `yaml:"matcher"`

	// MigrationsPath is the directory containing SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// SeedFile is an optional YAML file of dimensions and canonical values
	// loaded at startup when the dimension registry is empty.
	SeedFile string `yaml:"seed_file" env:"SEED_FILE" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"refdata"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"refdata_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// MatcherConfig holds matcher defaults and the outbound call budget.
type MatcherConfig struct {
	MatchThreshold   float64 `yaml:"match_threshold" env:"MATCH_THRESHOLD" env-default:"0.6"`
	TopK             int     `yaml:"top_k" env:"MATCH_TOP_K" env-default:"5"`
	Backend          string  `yaml:"backend" env:"MATCHER_BACKEND" env-default:"embedding"`
	EmbeddingModel   string  `yaml:"embedding_model" env:"EMBEDDING_MODEL" env-default:"tfidf"`
	LLMMode          string  `yaml:"llm_mode" env:"LLM_MODE" env-default:"online"`
	LLMProvider      string  `yaml:"llm_provider" env:"LLM_PROVIDER" env-default:"openai"`
	LLMModel         string  `yaml:"llm_model" env:"LLM_MODEL" env-default:""`
	LLMAPIBase       string  `yaml:"llm_api_base" env:"LLM_API_BASE" env-default:""`
	LLMAPIKey        string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	DefaultDimension string  `yaml:"default_dimension" env:"DEFAULT_DIMENSION" env-default:"general"`
	// TimeoutSeconds bounds every outbound embedding/LLM call. Timeouts
	// degrade to "no candidates", they never fail the caller.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"MATCHER_TIMEOUT_SECONDS" env-default:"20"`
}

// Timeout returns the outbound call budget as a duration.
func (m *MatcherConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Matcher.MatchThreshold < 0 || c.Matcher.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold must be in [0,1], got %v", c.Matcher.MatchThreshold)
	}
	if c.Matcher.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", c.Matcher.TopK)
	}
	switch c.Matcher.Backend {
	case "embedding", "llm":
	default:
		return fmt.Errorf("matcher backend must be embedding or llm, got %q", c.Matcher.Backend)
	}
	switch c.Matcher.LLMMode {
	case "online", "offline":
	default:
		return fmt.Errorf("llm_mode must be online or offline, got %q", c.Matcher.LLMMode)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
