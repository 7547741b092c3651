package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application-level configuration
type Config struct {
	// Metrics provider
	MetricsEndpoint string // empty means offline fallback only
	FetchTimeout    time.Duration
	MaxConcurrency  int

	// Output
	OutputDir   string
	DatabaseURL string // empty disables the Postgres export
	ChromePDF   bool

	// Server
	ServerAddr string

	LogLevel string
}

// Load reads configuration from environment variables or falls back to defaults
func Load() *Config {
	return &Config{
		MetricsEndpoint: getEnv("METRICS_ENDPOINT", ""),
		FetchTimeout:    time.Duration(getEnvInt("FETCH_TIMEOUT_MS", 15000)) * time.Millisecond,
		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 4),
		OutputDir:       getEnv("OUTPUT_DIR", "output"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		ChromePDF:       getEnvBool("CHROME_PDF", false),
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return defaultVal
}
