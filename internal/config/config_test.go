package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("CACHE_TTL", "30s"); err != nil {
		t.Fatalf("Failed to set CACHE_TTL: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("CACHE_TTL")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, 30*time.Second)
	}

	if cfg.Credits.PerVerse != 10 || cfg.Credits.DailyLimit != 300 {
		t.Errorf("Credits = %+v, want 10 per verse and 300 daily", cfg.Credits)
	}

	if cfg.Bible.DefaultTranslation != "nkrv" {
		t.Errorf("Bible.DefaultTranslation = %v, want nkrv", cfg.Bible.DefaultTranslation)
	}
}

func validConfig() *Config {
	return &Config{
		Credits: CreditsConfig{PerVerse: 10, DailyLimit: 300, AdvanceDelay: time.Second},
		Auth:    AuthConfig{JWTSecret: "secret", Required: true},
		Session: SessionConfig{IdleTimeout: time.Minute, ReapInterval: time.Second},
		Bible: BibleConfig{
			DefaultTranslation: "nkrv",
			Translations:       []string{"nkrv", "krv"},
			DefaultTimezone:    "Asia/Seoul",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid configuration", mutate: func(c *Config) {}},
		{name: "zero per-verse credit", mutate: func(c *Config) { c.Credits.PerVerse = 0 }, wantErr: true},
		{name: "limit not a multiple of per-verse", mutate: func(c *Config) { c.Credits.DailyLimit = 305 }, wantErr: true},
		{name: "negative limit", mutate: func(c *Config) { c.Credits.DailyLimit = -10 }, wantErr: true},
		{name: "missing secret with auth required", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "missing secret with auth disabled", mutate: func(c *Config) {
			c.Auth.JWTSecret = ""
			c.Auth.Required = false
		}},
		{name: "unknown timezone", mutate: func(c *Config) { c.Bible.DefaultTimezone = "Mars/Olympus" }, wantErr: true},
		{name: "default translation disabled", mutate: func(c *Config) { c.Bible.DefaultTranslation = "kjv" }, wantErr: true},
		{name: "zero reap interval", mutate: func(c *Config) { c.Session.ReapInterval = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClampAdvanceDelay(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{in: 0, want: MinAdvanceDelay},
		{in: 100 * time.Millisecond, want: MinAdvanceDelay},
		{in: time.Second, want: time.Second},
		{in: 5 * time.Second, want: MaxAdvanceDelay},
	}

	for _, tt := range tests {
		if got := ClampAdvanceDelay(tt.in); got != tt.want {
			t.Errorf("ClampAdvanceDelay(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGetEnvAsList(t *testing.T) {
	if err := os.Setenv("TEST_LIST", " nkrv, ,krv "); err != nil {
		t.Fatalf("Failed to set env var: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("TEST_LIST")
	}()

	got := getEnvAsList("TEST_LIST", []string{"x"})
	if len(got) != 2 || got[0] != "nkrv" || got[1] != "krv" {
		t.Errorf("getEnvAsList() = %v, want [nkrv krv]", got)
	}

	if got := getEnvAsList("TEST_LIST_NOTSET", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("getEnvAsList() default = %v, want [x]", got)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns integer when valid",
			key:          "TEST_INT",
			defaultValue: 100,
			envValue:     "200",
			want:         200,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_INT_INVALID",
			defaultValue: 100,
			envValue:     "invalid",
			want:         100,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOTSET",
			defaultValue: 100,
			envValue:     "",
			want:         100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns duration when valid",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_DURATION_INVALID",
			defaultValue: 10 * time.Second,
			envValue:     "invalid",
			want:         10 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOTSET",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
