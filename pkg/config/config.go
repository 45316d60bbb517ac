package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Tier names accepted in QUERY_TIERS.
const (
	TierSearch       = "search"
	TierVectorSearch = "vector-search"
	TierQuery        = "query"
)

// State backends accepted in STATE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config stores all configuration for the client.
type Config struct {
	APIBase           string        `mapstructure:"PATHFINDER_API_BASE"`
	HTTPTimeout       time.Duration `mapstructure:"HTTP_TIMEOUT"`
	StreamTimeout     time.Duration `mapstructure:"STREAM_TIMEOUT"`
	PollInterval      time.Duration `mapstructure:"POLL_INTERVAL"`
	PollMaxAttempts   int           `mapstructure:"POLL_MAX_ATTEMPTS"`
	CheckSpecificPath bool          `mapstructure:"CHECK_SPECIFIC_PATH"`
	QueryTiers        []string      `mapstructure:"QUERY_TIERS"`

	StateBackend  string `mapstructure:"STATE_BACKEND"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`
	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	// StateTTL expires Redis records; zero keeps them until overwritten.
	StateTTL time.Duration `mapstructure:"STATE_TTL"`

	ChromeDebuggerURL string `mapstructure:"CHROME_DEBUGGER_URL"`
	ServerPort        string `mapstructure:"SERVER_PORT"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PATHFINDER_API_BASE", "https://pathfinder-bay-mu.vercel.app/api")
	v.SetDefault("HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("STREAM_TIMEOUT", 10*time.Minute)
	v.SetDefault("POLL_INTERVAL", 2*time.Second)
	v.SetDefault("POLL_MAX_ATTEMPTS", 150)
	v.SetDefault("CHECK_SPECIFIC_PATH", true)
	v.SetDefault("QUERY_TIERS", []string{TierSearch, TierVectorSearch, TierQuery})
	v.SetDefault("STATE_BACKEND", BackendSQLite)
	v.SetDefault("SQLITE_PATH", "sherpa.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "sherpa:site:")
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("STATE_TTL", 0)
	v.SetDefault("CHROME_DEBUGGER_URL", "")
	v.SetDefault("SERVER_PORT", "8765")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load reads configuration from an optional .env file and environment variables.
// Flags bound to v by the caller take precedence over both.
func Load(v *viper.Viper) (*Config, error) {
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// The .env file is optional; plain environment variables are enough.
	_ = v.ReadInConfig()

	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.QueryTiers = splitTiers(cfg.QueryTiers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the client cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBase) == "" {
		return fmt.Errorf("PATHFINDER_API_BASE must be set")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive, got %d", c.PollMaxAttempts)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if len(c.QueryTiers) == 0 {
		return fmt.Errorf("QUERY_TIERS must name at least one tier")
	}
	for _, tier := range c.QueryTiers {
		switch tier {
		case TierSearch, TierVectorSearch, TierQuery:
		default:
			return fmt.Errorf("unknown query tier %q", tier)
		}
	}
	if c.StateTTL < 0 {
		return fmt.Errorf("STATE_TTL must not be negative, got %s", c.StateTTL)
	}
	switch c.StateBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the postgres state backend")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.StateBackend)
	}
	return nil
}

// splitTiers accepts both a list and a single comma separated env value.
func splitTiers(raw []string) []string {
	var tiers []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				tiers = append(tiers, part)
			}
		}
	}
	return tiers
}
