// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	FrontendURL  string
	DBPath       string
	LocalRoot    string
	SandboxImage string
	GitCloneURL  string
	AgentsFile   string
	DefaultModel string
	Workers      int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8000"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/transcript.db"),
		LocalRoot:    getEnv("LOCAL_ROOT", "./data/workspaces"),
		SandboxImage: getEnv("SANDBOX_IMAGE", "switchboard-sandbox:latest"),
		GitCloneURL:  getEnv("GIT_CLONE_URL", ""),
		AgentsFile:   getEnv("AGENTS_FILE", ""),
		DefaultModel: getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
		Workers:      getEnvInt("DISPATCH_WORKERS", 4),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.LocalRoot == "" {
		return fmt.Errorf("LOCAL_ROOT cannot be empty")
	}
	if c.DefaultModel == "" {
		return fmt.Errorf("COMPLETION_MODEL cannot be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("DISPATCH_WORKERS must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
