package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores static server runtime configuration.
type Config struct {
	Server ServerConfig

	Content ContentConfig

	LogLevel string

	RateLimit RateLimitConfig

	Admin AdminConfig
}

// ServerConfig controls the content listener.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ContentConfig controls how request paths map to files.
type ContentConfig struct {
	RootDir        string
	IndexFile      string
	DiagnosticPath string
}

// RateLimitConfig controls global and per-IP limits.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// AdminConfig controls the optional metrics/health listener.
type AdminConfig struct {
	Addr        string
	BearerToken string
}

// Load reads configuration from environment and validates it.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv reads configuration from environment without validating it, so
// callers can layer overrides before a single Validate.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "127.0.0.1"),
			Port:            getEnv("SERVER_PORT", "5500"),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Content: ContentConfig{
			RootDir:        getEnv("ROOT_DIR", "."),
			IndexFile:      getEnv("INDEX_FILE", "index.html"),
			DiagnosticPath: getEnv("DIAGNOSTIC_PATH", "/test-headers"),
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", false),
			RPS:     getEnvFloat("RATE_LIMIT_RPS", 200),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 400),
		},
		Admin: AdminConfig{
			Addr:        getEnv("ADMIN_ADDR", ""),
			BearerToken: getEnv("ADMIN_BEARER_TOKEN", ""),
		},
	}
}

// Validate checks invariants and normalizes the root directory to an
// absolute path. It is safe to call again after flags override fields.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("SERVER_PORT must be a TCP port, got %q", c.Server.Port)
	}

	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("SERVER_HOST must not be empty")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}

	root, err := filepath.Abs(c.Content.RootDir)
	if err != nil {
		return fmt.Errorf("resolve ROOT_DIR: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat ROOT_DIR: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("ROOT_DIR %q is not a directory", root)
	}
	c.Content.RootDir = root

	if c.Content.IndexFile == "" || strings.ContainsAny(c.Content.IndexFile, `/\`) {
		return fmt.Errorf("INDEX_FILE must be a bare file name, got %q", c.Content.IndexFile)
	}

	if !strings.HasPrefix(c.Content.DiagnosticPath, "/") || c.Content.DiagnosticPath == "/" {
		return fmt.Errorf("DIAGNOSTIC_PATH must start with / and name a path, got %q", c.Content.DiagnosticPath)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("RATE_LIMIT_RPS must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("RATE_LIMIT_BURST must be positive")
		}
	}

	if c.Admin.BearerToken != "" && c.Admin.Addr == "" {
		return fmt.Errorf("ADMIN_BEARER_TOKEN requires ADMIN_ADDR")
	}

	return nil
}

// Addr returns the content listener address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
