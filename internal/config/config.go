// Package config provides configuration management for the verse transcription service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Advance delay bounds for the post-match display pause
const (
	MinAdvanceDelay = 500 * time.Millisecond
	MaxAdvanceDelay = 1500 * time.Millisecond
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Credits   CreditsConfig
	Auth      AuthConfig
	Session   SessionConfig
	Bible     BibleConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	TTL        time.Duration // Short-lived entries (stats, completed keys)
	ChapterTTL time.Duration // Verse texts; these never change
}

// CreditsConfig holds the credit award rules
type CreditsConfig struct {
	PerVerse     int
	DailyLimit   int
	AdvanceDelay time.Duration
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	Required  bool
}

// SessionConfig holds server-held transcription session settings
type SessionConfig struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

// BibleConfig holds verse source defaults
type BibleConfig struct {
	DefaultTranslation string
	Translations       []string
	DefaultTimezone    string
}

// CatalogConfig holds topic catalog settings
type CatalogConfig struct {
	Path string // Optional; the embedded catalog is used when empty
}

// RateLimitConfig holds per-user request rate limiting
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "verse_scribe"),
				User:           getEnv("POSTGRES_USER", "scribe"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 25),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "verse_scribe"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Cache: CacheConfig{
			TTL:        getEnvAsDuration("CACHE_TTL", 30*time.Second),
			ChapterTTL: getEnvAsDuration("CACHE_CHAPTER_TTL", 24*time.Hour),
		},
		Credits: CreditsConfig{
			PerVerse:     getEnvAsInt("CREDITS_PER_VERSE", 10),
			DailyLimit:   getEnvAsInt("CREDITS_DAILY_LIMIT", 300),
			AdvanceDelay: ClampAdvanceDelay(getEnvAsDuration("CREDITS_ADVANCE_DELAY", time.Second)),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer: getEnv("AUTH_JWT_ISSUER", ""),
			Required:  getEnvAsBool("AUTH_REQUIRED", true),
		},
		Session: SessionConfig{
			IdleTimeout:  getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			ReapInterval: getEnvAsDuration("SESSION_REAP_INTERVAL", time.Minute),
		},
		Bible: BibleConfig{
			DefaultTranslation: getEnv("BIBLE_DEFAULT_TRANSLATION", "nkrv"),
			Translations:       getEnvAsList("BIBLE_TRANSLATIONS", []string{"nkrv", "krv", "kor"}),
			DefaultTimezone:    getEnv("BIBLE_DEFAULT_TIMEZONE", "Asia/Seoul"),
		},
		Catalog: CatalogConfig{
			Path: getEnv("CATALOG_PATH", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	return config, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Credits.PerVerse <= 0 {
		return fmt.Errorf("credits per verse must be positive, got %d", c.Credits.PerVerse)
	}
	if c.Credits.DailyLimit <= 0 || c.Credits.DailyLimit%c.Credits.PerVerse != 0 {
		return fmt.Errorf("daily limit %d must be a positive multiple of credits per verse %d",
			c.Credits.DailyLimit, c.Credits.PerVerse)
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_REQUIRED is set")
	}
	if _, err := time.LoadLocation(c.Bible.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid default timezone %q: %w", c.Bible.DefaultTimezone, err)
	}
	if !c.HasTranslation(c.Bible.DefaultTranslation) {
		return fmt.Errorf("default translation %q is not in the enabled list", c.Bible.DefaultTranslation)
	}
	if c.Session.IdleTimeout <= 0 || c.Session.ReapInterval <= 0 {
		return fmt.Errorf("session idle timeout and reap interval must be positive")
	}
	return nil
}

// HasTranslation reports whether code is an enabled translation
func (c *Config) HasTranslation(code string) bool {
	for _, t := range c.Bible.Translations {
		if t == code {
			return true
		}
	}
	return false
}

// ClampAdvanceDelay keeps the advance delay inside the supported display range
func ClampAdvanceDelay(d time.Duration) time.Duration {
	if d < MinAdvanceDelay {
		return MinAdvanceDelay
	}
	if d > MaxAdvanceDelay {
		return MaxAdvanceDelay
	}
	return d
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
