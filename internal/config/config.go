package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	StoreDriver     string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	GeminiAPIKey    string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel     string        `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL   string        `mapstructure:"GEMINI_BASE_URL"`
	LLMTimeout      time.Duration `mapstructure:"LLM_TIMEOUT"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit       string        `mapstructure:"BODY_LIMIT"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	LinkageCacheTTL time.Duration `mapstructure:"LINKAGE_CACHE_TTL"`
	KafkaBrokers    []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic      string        `mapstructure:"KAFKA_TOPIC"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "LLM_TIMEOUT",
	"REQUEST_TIMEOUT", "BODY_LIMIT", "REDIS_URL", "LINKAGE_CACHE_TTL",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "CORS_ORIGINS",
}

// Load reads the environment and an optional .env file. It does not
// validate; call Validate before serving.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("LLM_TIMEOUT", "45s")
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("LINKAGE_CACHE_TTL", "10m")
	v.SetDefault("KAFKA_TOPIC", "clinical.resources")
	v.SetDefault("CORS_ORIGINS", "*")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address for PORT.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Validate checks the settings needed to serve. The memory store is
// refused in production.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
		}
	case StoreMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER %q is not allowed in production", StoreMemory)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMemory, c.StoreDriver)
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.RequestTimeout > 0 && c.RequestTimeout <= c.LLMTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must exceed LLM_TIMEOUT (%s)", c.RequestTimeout, c.LLMTimeout)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// ValidateMigrate checks the settings needed by the migrate command.
func (c *Config) ValidateMigrate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}
