// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Freshness policy
	FreshnessThreshold time.Duration // Max cache age still considered fresh for current periods
	CacheRetentionDays int           // Retention horizon for the cache cleanup job
	EnforceCacheFirst  bool          // Forbid upstream fallback when cache/history is the expected source

	// Upstream provider
	UpstreamBaseURL      string
	UpstreamAPIKey       string
	UpstreamLookbackDays int // How far back the provider supports fetching

	// S3 backup (optional - backups disabled when credentials are absent)
	S3Endpoint          string
	S3Region            string
	S3AccessKeyID       string
	S3SecretAccessKey   string
	S3Bucket            string
	BackupRetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory, always resolved to an absolute path
	dataDir := getEnv("ADPULSE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "/var/lib/adpulse"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		FreshnessThreshold: time.Duration(getEnvAsInt("FRESHNESS_THRESHOLD_HOURS", 4)) * time.Hour,
		CacheRetentionDays: getEnvAsInt("CACHE_RETENTION_DAYS", 45),
		EnforceCacheFirst:  getEnvAsBool("ENFORCE_CACHE_FIRST", true),

		UpstreamBaseURL:      getEnv("UPSTREAM_BASE_URL", ""),
		UpstreamAPIKey:       getEnv("UPSTREAM_API_KEY", ""),
		UpstreamLookbackDays: getEnvAsInt("UPSTREAM_LOOKBACK_DAYS", 1460),

		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            getEnv("S3_REGION", "auto"),
		S3AccessKeyID:       getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:   getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Bucket:            getEnv("S3_BUCKET", ""),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.FreshnessThreshold <= 0 {
		return fmt.Errorf("freshness threshold must be positive")
	}
	if c.UpstreamLookbackDays <= 0 {
		return fmt.Errorf("upstream lookback days must be positive")
	}
	// Upstream credentials are optional: without them the service answers
	// from cache and history only, and live fetches fail with a clear error.
	return nil
}

// CacheRetention returns the cache retention horizon as a duration.
func (c *Config) CacheRetention() time.Duration {
	return time.Duration(c.CacheRetentionDays) * 24 * time.Hour
}

// BackupEnabled reports whether S3 backup credentials are fully configured.
func (c *Config) BackupEnabled() bool {
	return c.S3AccessKeyID != "" && c.S3SecretAccessKey != "" && c.S3Bucket != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
