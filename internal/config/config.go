// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backend names accepted by STORE_BACKEND.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

type Config struct {
	// HTTP server
	Port           string
	CORSOrigins    []string
	APIToken       string
	MaxUploadBytes int64
	AnalyzeTimeout time.Duration

	// Storage
	StoreBackend       string
	SQLiteDBPath       string
	GoogleCloudProject string
	ArchiveBucket      string

	// LLM providers
	OpenRouterAPIKey string
	GroqAPIKey       string
	GeminiAPIKey     string
	InsightsProvider string
	InsightsModel    string
	ExtractionModels []string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		APIToken:       getEnv("API_TOKEN", ""),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 15<<20)),
		AnalyzeTimeout: getEnvDuration("ANALYZE_TIMEOUT", 120*time.Second),

		StoreBackend:       getEnv("STORE_BACKEND", BackendMemory),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/cardlens.db"),
		GoogleCloudProject: getEnv("GOOGLE_CLOUD_PROJECT", ""),
		ArchiveBucket:      getEnv("ARCHIVE_BUCKET", ""),

		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		GroqAPIKey:       getEnv("GROQ_API_KEY", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		InsightsProvider: getEnv("INSIGHTS_PROVIDER", "openrouter"),
		InsightsModel:    getEnv("INSIGHTS_MODEL", "meta-llama/llama-3.3-70b-instruct:free"),
		ExtractionModels: getEnvList("EXTRACTION_MODELS", nil),
	}
}

// Validate returns an error describing every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.StoreBackend {
	case BackendMemory, BackendSQLite, BackendFirestore:
	default:
		errs = append(errs, fmt.Sprintf("invalid store backend '%s': must be one of [%s %s %s]",
			c.StoreBackend, BackendMemory, BackendSQLite, BackendFirestore))
	}

	if c.StoreBackend == BackendSQLite && c.SQLiteDBPath == "" {
		errs = append(errs, "SQLITE_DB_PATH cannot be empty when using the sqlite backend")
	}
	if c.StoreBackend == BackendFirestore && c.GoogleCloudProject == "" {
		errs = append(errs, "GOOGLE_CLOUD_PROJECT is required when using the firestore backend")
	}

	if c.MaxUploadBytes < 1024 {
		errs = append(errs, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	}
	if c.AnalyzeTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid analyze timeout %v: must be at least 1 second", c.AnalyzeTimeout))
	}

	switch c.InsightsProvider {
	case "openrouter", "groq", "gemini", "":
	default:
		errs = append(errs, fmt.Sprintf("invalid insights provider '%s': must be one of [openrouter groq gemini]", c.InsightsProvider))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// InsightsAPIKey returns the key matching the configured insights provider.
func (c *Config) InsightsAPIKey() string {
	switch c.InsightsProvider {
	case "groq":
		return c.GroqAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return c.OpenRouterAPIKey
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
