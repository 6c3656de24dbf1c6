// Package config loads process configuration from environment variables,
// with defaults, layered under a YAML bootstrap file supplying the dataset
// catalog and policy definitions a privacy request run needs. Nothing here
// is a process-wide singleton: Load returns a value the caller threads
// through its own constructors.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the runtime configuration for cmd/privacyrun.
type Config struct {
	RedisAddress string
	NATSAddress  string

	// BootstrapPath points at a YAML file declaring dataset definitions and
	// policies, loaded by LoadBootstrap. Schema/dataset discovery is out of
	// scope: every dataset and policy must be declared explicitly.
	BootstrapPath string

	// WebhookTimeout bounds every individual webhook callout.
	WebhookTimeout time.Duration
	// ResultTTL bounds how long a node's stored rows survive in the result
	// store after being written; reads do not extend it.
	ResultTTL time.Duration
	// SecretTTL bounds how long a generated masking secret survives in the
	// cache.
	SecretTTL time.Duration

	LogLevel string
}

// Load reads a Config from the environment, falling back to defaults
// suited to local development.
func Load() Config {
	return Config{
		RedisAddress:   getEnv("PRIVACYRUN_REDIS_URL", "localhost:6379"),
		NATSAddress:    getEnv("PRIVACYRUN_NATS_URL", "nats://localhost:4222"),
		BootstrapPath:  getEnv("PRIVACYRUN_BOOTSTRAP_PATH", "./bootstrap.yaml"),
		WebhookTimeout: getEnvDuration("PRIVACYRUN_WEBHOOK_TIMEOUT", 30*time.Second),
		ResultTTL:      getEnvDuration("PRIVACYRUN_RESULT_TTL", 24*time.Hour),
		SecretTTL:      getEnvDuration("PRIVACYRUN_SECRET_TTL", time.Hour),
		LogLevel:       getEnv("PRIVACYRUN_LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// ReadFile is a small seam over os.ReadFile so tests can substitute a
// fixture path without touching the real filesystem layout.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return data, nil
}
