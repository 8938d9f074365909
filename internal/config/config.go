package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the mentor chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	DatabaseURL string

	UpstreamProvider   string
	GeminiAPIKey       string
	GeminiBaseURL      string
	GeminiModel        string
	UpstreamTimeout    time.Duration
	UpstreamMaxRetries int
	RetryInitialDelay  time.Duration
	RetryBackoffCap    time.Duration

	InstructionsFile string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "vera"),
		DatabaseURL:        trimmedEnv("DATABASE_URL"),
		UpstreamProvider:   strings.ToLower(envOrDefault("UPSTREAM_PROVIDER", "gemini")),
		GeminiAPIKey:       trimmedEnv("GEMINI_API_KEY"),
		GeminiBaseURL:      trimmedEnv("GEMINI_BASE_URL"),
		GeminiModel:        envOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		InstructionsFile:   trimmedEnv("INSTRUCTIONS_FILE"),
		ShutdownTimeout:    15 * time.Second,
		UpstreamTimeout:    60 * time.Second,
		UpstreamMaxRetries: 3,
		RetryInitialDelay:  2 * time.Second,
		RetryBackoffCap:    30 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamTimeout, err = durationFromEnv("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamMaxRetries, err = intFromEnv("UPSTREAM_MAX_RETRIES", cfg.UpstreamMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryInitialDelay, err = durationFromEnv("UPSTREAM_RETRY_DELAY", cfg.RetryInitialDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryBackoffCap, err = durationFromEnv("UPSTREAM_RETRY_CAP", cfg.RetryBackoffCap)
	if err != nil {
		return Config{}, err
	}

	switch cfg.UpstreamProvider {
	case "gemini", "mock":
	default:
		return Config{}, fmt.Errorf("invalid UPSTREAM_PROVIDER: %q (expected gemini|mock)", cfg.UpstreamProvider)
	}
	if cfg.UpstreamMaxRetries < 0 {
		return Config{}, fmt.Errorf("UPSTREAM_MAX_RETRIES must be >= 0")
	}
	if cfg.RetryInitialDelay <= 0 {
		return Config{}, fmt.Errorf("UPSTREAM_RETRY_DELAY must be positive")
	}
	if cfg.RetryBackoffCap < cfg.RetryInitialDelay {
		return Config{}, fmt.Errorf("UPSTREAM_RETRY_CAP must be >= UPSTREAM_RETRY_DELAY")
	}
	if cfg.UpstreamTimeout <= 0 {
		return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}

	return cfg, nil
}

// UpstreamConfigured reports whether chat exchanges can reach a generator.
// The mock provider needs no credential.
func (c Config) UpstreamConfigured() bool {
	return c.UpstreamProvider == "mock" || c.GeminiAPIKey != ""
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
