package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port     string
	MongoURI string
	RedisURL string

	// Image storage
	UploadDir  string
	PublicBase string

	// Reasoning service (OpenAI-compatible chat completions endpoint)
	ReasoningBaseURL string
	ReasoningAPIKey  string
	ReasoningModel   string

	// Inbound shared key for the UI/API layer
	ServiceAPIKey string

	AnalysisWorkers int
	SweepInterval   time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3002"),
		MongoURI: getEnv("MONGODB_URI", ""),
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		UploadDir:  getEnv("UPLOAD_DIR", "./uploads"),
		PublicBase: getEnv("PUBLIC_BASE", "/files"),

		ReasoningBaseURL: getEnv("REASONING_BASE_URL", "https://api.openai.com/v1"),
		ReasoningAPIKey:  getEnv("REASONING_API_KEY", ""),
		ReasoningModel:   getEnv("REASONING_MODEL", "gpt-4o-mini"),

		ServiceAPIKey: getEnv("SERVICE_API_KEY", ""),

		AnalysisWorkers: getIntEnv("ANALYSIS_WORKERS", 2),
		SweepInterval:   getDurationEnv("ANALYSIS_SWEEP_INTERVAL", time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
