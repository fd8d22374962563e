// Package config carries the server configuration and the per-user LLM
// provider document consumed by the provider gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the top-level server configuration, populated from the
// environment (cmd/coworker loads .env via godotenv first).
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// DataRoot is the directory holding workspaces: group configs, message
	// logs, agent configs, and knowledge indexes live underneath it.
	DataRoot string

	// ProvidersFile is the path to the LLM provider document. Relative
	// paths are resolved against DataRoot.
	ProvidersFile string

	// MaxTurns bounds supervisor cycles within one server-side call.
	MaxTurns int

	LogLevel  string
	LogFormat string
}

// FromEnv builds a Config from environment variables with defaults.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:          envOr("COWORKER_ADDR", ":8080"),
		DataRoot:      envOr("COWORKER_DATA_ROOT", "./data"),
		ProvidersFile: envOr("COWORKER_PROVIDERS_FILE", "llm_providers.json"),
		MaxTurns:      5,
		LogLevel:      envOr("COWORKER_LOG_LEVEL", "info"),
		LogFormat:     envOr("COWORKER_LOG_FORMAT", "simple"),
	}

	if v := os.Getenv("COWORKER_MAX_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: invalid COWORKER_MAX_TURNS %q", v)
		}
		cfg.MaxTurns = n
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
