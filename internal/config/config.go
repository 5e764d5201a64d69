package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port    string
	BaseURL string // Upstream metrics API host, e.g. https://api.example.com

	// Proposal sources
	ProposalsURL string // Pre-built processed proposals JSON document
	BlogURL      string // Blog API host; defaults to BaseURL

	// Fetch layer tuning
	CacheWindow  time.Duration // How long a cached response counts as fresh
	FetchTimeout time.Duration // Overall budget for one logical fetch (all retries)
	MaxRetries   int
	RetryBase    time.Duration
	RetryMax     time.Duration

	// Outbound rate limiting
	RequestThreshold int           // Max upstream calls per RequestWindow before preferring stale data
	RequestWindow    time.Duration
	OutboundRate     float64 // Requests per second pacing toward the upstream

	// Background refresh
	RefreshEnabled bool
	RefreshCron    string // Standard 5-field cron expression
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:    getEnv("PORT", "3001"),
		BaseURL: getEnv("BASE_URL", "https://popsicle.avax.network"),

		ProposalsURL: getEnv("PROPOSALS_URL", ""),
		BlogURL:      getEnv("BLOG_URL", ""),

		CacheWindow:  getDurationEnv("CACHE_WINDOW", 60*time.Second),
		FetchTimeout: getDurationEnv("FETCH_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("FETCH_MAX_RETRIES", 3),
		RetryBase:    getDurationEnv("FETCH_RETRY_BASE", 1*time.Second),
		RetryMax:     getDurationEnv("FETCH_RETRY_MAX", 8*time.Second),

		RequestThreshold: getIntEnv("REQUEST_THRESHOLD", 30),
		RequestWindow:    getDurationEnv("REQUEST_WINDOW", 1*time.Minute),
		OutboundRate:     getFloatEnv("OUTBOUND_RATE", 5.0),

		RefreshEnabled: getBoolEnv("REFRESH_ENABLED", true),
		RefreshCron:    getEnv("REFRESH_CRON", "*/5 * * * *"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
