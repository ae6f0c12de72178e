package config

import (
	"os"
	"strconv"
	"time"

	"tribune/internal/external"
)

// Config contains the client configuration
type Config struct {
	LogLevel  string
	LogFormat string

	// Debug metrics endpoint
	MetricsEnabled bool
	MetricsPort    string

	// The three backend boundaries are independently deployable services
	// with their own base URLs
	Catalog     external.CatalogConfig
	Reservation external.ReservationConfig
	Order       external.OrderConfig

	// Workflow cadences
	PollInterval         time.Duration
	StreamRetryDelay     time.Duration
	CountdownInterval    time.Duration
	CheckoutPollInterval time.Duration

	// Hold durations requested from the reservation service
	HoldSeconds   int
	ExtendSeconds int
}

// Load reads the configuration from environment variables
func Load() *Config {
	return &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnv("METRICS_ENABLED", "false") == "true",
		MetricsPort:    getEnv("METRICS_PORT", "9091"),

		Catalog: external.CatalogConfig{
			BaseURL: getEnv("CATALOG_API_URL", "http://localhost:8081"),
			Timeout: time.Duration(getEnvInt("CATALOG_TIMEOUT_SEC", 30)) * time.Second,
		},
		Reservation: external.ReservationConfig{
			BaseURL: getEnv("RESERVATION_API_URL", "http://localhost:8082"),
			Timeout: time.Duration(getEnvInt("RESERVATION_TIMEOUT_SEC", 30)) * time.Second,
		},
		Order: external.OrderConfig{
			BaseURL: getEnv("ORDER_API_URL", "http://localhost:8083"),
			Timeout: time.Duration(getEnvInt("ORDER_TIMEOUT_SEC", 30)) * time.Second,
		},

		PollInterval:         time.Duration(getEnvInt("SEATMAP_POLL_SEC", 10)) * time.Second,
		StreamRetryDelay:     time.Duration(getEnvInt("STREAM_RETRY_SEC", 3)) * time.Second,
		CountdownInterval:    1 * time.Second,
		CheckoutPollInterval: 1 * time.Second,

		HoldSeconds:   getEnvInt("HOLD_SECONDS", 30),
		ExtendSeconds: getEnvInt("EXTEND_SECONDS", 30),
	}
}

// getEnv returns the environment variable value or the default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
