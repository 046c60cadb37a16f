// Package config reads the backend proxy settings from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServiceName     string
	LogLevel        string
	LogFormat       string
	HTTPPort        string
	UpstreamURL     string
	APIKey          string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

var (
	ErrMissingUpstream = errors.New("CHECKOUT_GATEWAY_URL is required")
	ErrMissingAPIKey   = errors.New("CHECKOUT_API_KEY is required")
)

func Load() (Config, error) {
	cfg := Config{
		ServiceName:     getEnv("SERVICE_NAME", "api-gateway"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		UpstreamURL:     os.Getenv("CHECKOUT_GATEWAY_URL"),
		APIKey:          os.Getenv("CHECKOUT_API_KEY"),
		RequestTimeout:  envSeconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second),
		ShutdownTimeout: 10 * time.Second,
	}
	if cfg.UpstreamURL == "" {
		return cfg, ErrMissingUpstream
	}
	if cfg.APIKey == "" {
		return cfg, ErrMissingAPIKey
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
