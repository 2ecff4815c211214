// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries the process-wide settings consumed by the CLI. It is
// built once from the environment and passed explicitly into the
// adapter and engine constructors, never read ambiently.
type Config struct {
	Gateway struct {
		URL      string
		Username string
		Password string
		Timeout  time.Duration
	}
	Engine struct {
		Prune          bool
		MaxConcurrency int
		RetryLimit     int
		RetryBackoff   time.Duration
	}
	LogLevel string
}

func Load() *Config {
	cfg := &Config{}

	// Gateway connection
	cfg.Gateway.URL = getEnv("RBACSYNC_GATEWAY_URL", "http://localhost:8043")
	cfg.Gateway.Username = getEnv("RBACSYNC_GATEWAY_USERNAME", "admin")
	cfg.Gateway.Password = getEnv("RBACSYNC_GATEWAY_PASSWORD", "")
	cfg.Gateway.Timeout = getEnvDuration("RBACSYNC_GATEWAY_TIMEOUT", 30*time.Second)

	// Engine behavior
	cfg.Engine.Prune = getEnvBool("RBACSYNC_PRUNE", false)
	cfg.Engine.MaxConcurrency = getEnvInt("RBACSYNC_MAX_CONCURRENCY", 4)
	cfg.Engine.RetryLimit = getEnvInt("RBACSYNC_RETRY_LIMIT", 3)
	cfg.Engine.RetryBackoff = getEnvDuration("RBACSYNC_RETRY_BACKOFF", 250*time.Millisecond)

	cfg.LogLevel = getEnv("RBACSYNC_LOG_LEVEL", "info")

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
