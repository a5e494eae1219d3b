// Package config loads client configuration from the environment, with an
// optional .env file for development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full client configuration. Unset durations fall back to
// the defaults of the packages they configure.
type Config struct {
	// BackendURL is the base address of the document-QA service.
	BackendURL string
	// RequestTimeout bounds every backend call.
	RequestTimeout time.Duration
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// MaxIngestBytes bounds file plus pasted-text size per ingestion.
	MaxIngestBytes int
	// SourceCacheTTL is how long /sources listings stay cached.
	SourceCacheTTL time.Duration

	// RevealInterval is the cadence of the answer typing effect.
	RevealInterval time.Duration
	// HintInterval is the cadence of the in-flight phase hint cycle.
	HintInterval time.Duration
	// ProgressInterval is the cadence of the simulated ingest progress.
	ProgressInterval time.Duration
	// IngestSuccessDwell is how long the ingest success toast stays.
	IngestSuccessDwell time.Duration
	// HighlightDwell is how long a clicked citation stays emphasized.
	HighlightDwell time.Duration
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		BackendURL:         getEnv("RAGPANEL_BACKEND_URL", "http://localhost:8000"),
		RequestTimeout:     getEnvDuration("RAGPANEL_REQUEST_TIMEOUT_MS", 60*time.Second),
		LogLevel:           getEnv("RAGPANEL_LOG_LEVEL", "info"),
		MaxIngestBytes:     getEnvInt("RAGPANEL_MAX_INGEST_BYTES", 10<<20),
		SourceCacheTTL:     getEnvDuration("RAGPANEL_SOURCE_CACHE_TTL_MS", 30*time.Second),
		RevealInterval:     getEnvDuration("RAGPANEL_REVEAL_INTERVAL_MS", 10*time.Millisecond),
		HintInterval:       getEnvDuration("RAGPANEL_HINT_INTERVAL_MS", 1200*time.Millisecond),
		ProgressInterval:   getEnvDuration("RAGPANEL_PROGRESS_INTERVAL_MS", 200*time.Millisecond),
		IngestSuccessDwell: getEnvDuration("RAGPANEL_INGEST_SUCCESS_DWELL_MS", 4*time.Second),
		HighlightDwell:     getEnvDuration("RAGPANEL_HIGHLIGHT_DWELL_MS", 2*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using default", key, value)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		log.Printf("Invalid duration for %s: %q, using default", key, value)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
