// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port         string
	RedisAddr    string
	PostgresDSN  string
	WorkerID     string
	PollInterval time.Duration
	LogLevel     string
	LogFormat    string
	Email        EmailConfig
}

type EmailConfig struct {
	APIKey      string
	FromName    string
	FromAddress string
	To          string
	RatePerSec  int // SendGrid calls per second
}

func (e EmailConfig) Enabled() bool {
	return e.APIKey != "" && e.To != ""
}

// Load reads the environment through getenv, so tests can pass a map lookup.
func Load(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &Config{
		Port:        valueOr(getenv("PORT"), "8080"),
		RedisAddr:   valueOr(getenv("REDIS_ADDR"), "localhost:6379"),
		PostgresDSN: getenv("POSTGRES_DSN"),
		WorkerID:    getenv("WORKER_ID"),
		LogLevel:    valueOr(getenv("LOG_LEVEL"), "info"),
		LogFormat:   valueOr(getenv("LOG_FORMAT"), "console"),
		Email: EmailConfig{
			APIKey:      getenv("EMAIL_API_KEY"),
			FromName:    valueOr(getenv("FROM_NAME"), "taskplan"),
			FromAddress: getenv("FROM_ADDRESS"),
			To:          getenv("REMINDER_EMAIL_TO"),
		},
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = fmt.Sprintf("worker-%d", time.Now().Unix())
	}

	cfg.PollInterval = time.Second
	if raw := strings.TrimSpace(getenv("POLL_INTERVAL")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q: %w", raw, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q: must be positive", raw)
		}
		cfg.PollInterval = d
	}

	cfg.Email.RatePerSec = 2
	if raw := strings.TrimSpace(getenv("EMAIL_RATE_PER_SEC")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid EMAIL_RATE_PER_SEC %q: must be a positive integer", raw)
		}
		cfg.Email.RatePerSec = n
	}

	if cfg.Email.APIKey != "" && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("FROM_ADDRESS is required when EMAIL_API_KEY is set")
	}

	return cfg, nil
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
