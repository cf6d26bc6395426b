// Package config centralises configuration parsing for the Spring binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend modes.
const (
	ModeHosted   = "hosted"
	ModePostgres = "postgres"
)

// Config captures runtime configuration values.
type Config struct {
	HTTPAddress string
	Mode        string

	// Hosted backend (ModeHosted).
	BackendURL string
	BackendKey string

	// Direct Postgres (ModePostgres).
	PostgresURL string

	// Optional Kafka mirror for cross-replica live inserts.
	KafkaBrokers  []string
	ConsumerGroup string

	JWTSecret   string
	JWTIssuer   string
	HTTPTimeout time.Duration
	FeedLimit   int
}

// Load reads environment variables into Config. The backend endpoint is
// deliberately not defaulted: absence fails fast rather than silently
// operating against an undefined backend.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddress:   getEnv("HTTP_ADDRESS", ":8080"),
		Mode:          getEnv("SPRING_BACKEND_MODE", ModeHosted),
		BackendURL:    os.Getenv("SPRING_BACKEND_URL"),
		BackendKey:    os.Getenv("SPRING_API_KEY"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		KafkaBrokers:  splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		ConsumerGroup: getEnv("CONSUMER_GROUP_ID", "spring-realtime-bridge"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTIssuer:     getEnv("JWT_ISSUER", "spring.auth"),
		HTTPTimeout:   getDurationEnv("HTTP_TIMEOUT", 10*time.Second),
		FeedLimit:     getIntEnv("FEED_LIMIT", 50),
	}

	switch cfg.Mode {
	case ModeHosted:
		if cfg.BackendURL == "" {
			return Config{}, errors.New("SPRING_BACKEND_URL is required in hosted mode")
		}
		if cfg.BackendKey == "" {
			return Config{}, errors.New("SPRING_API_KEY is required in hosted mode")
		}
	case ModePostgres:
		if cfg.PostgresURL == "" {
			return Config{}, errors.New("POSTGRES_URL is required in postgres mode")
		}
	default:
		return Config{}, fmt.Errorf("unknown SPRING_BACKEND_MODE: %q", cfg.Mode)
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
