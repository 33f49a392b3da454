// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ekurt/finassist/internal/ratelimit"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Base directory for the portfolio database (always absolute)
	Port          int
	LogLevel      string
	DevMode       bool
	PriceCacheTTL time.Duration
	RateLimits    map[string]ratelimit.Limit
	FallbackLimit ratelimit.Limit
	Backup        *BackupConfig
}

// BackupConfig holds the S3-compatible backup target. Backups are
// disabled when Bucket is empty.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // custom endpoint for S3-compatible stores, empty for AWS
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Retention       int // how many backups to keep, 0 = keep all
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FINASSIST_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".finassist")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("FINASSIST_PORT", 8080),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		PriceCacheTTL: time.Duration(getEnvAsInt("PRICE_CACHE_TTL_SECONDS", 60)) * time.Second,
		RateLimits:    loadRateLimits(),
		FallbackLimit: limitFromEnv("DEFAULT", ratelimit.Limit{Rate: 5, Burst: 10}),
		Backup:        loadBackupConfig(),
	}

	return cfg, nil
}

// DatabasePath returns the portfolio database location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "portfolio.db")
}

// loadRateLimits returns the per-source token bucket table. The scrape
// targets get tighter budgets than the JSON APIs. Each entry can be
// overridden via RATE_LIMIT_<SOURCE>_RATE / RATE_LIMIT_<SOURCE>_BURST.
func loadRateLimits() map[string]ratelimit.Limit {
	return map[string]ratelimit.Limit{
		"tefas":     limitFromEnv("TEFAS", ratelimit.Limit{Rate: 2, Burst: 5}),
		"bloomberg": limitFromEnv("BLOOMBERG", ratelimit.Limit{Rate: 3, Burst: 10}),
		"yahoo":     limitFromEnv("YAHOO", ratelimit.Limit{Rate: 5, Burst: 20}),
	}
}

func limitFromEnv(name string, defaultLimit ratelimit.Limit) ratelimit.Limit {
	return ratelimit.Limit{
		Rate:  getEnvAsFloat("RATE_LIMIT_"+name+"_RATE", defaultLimit.Rate),
		Burst: getEnvAsFloat("RATE_LIMIT_"+name+"_BURST", defaultLimit.Burst),
	}
}

func loadBackupConfig() *BackupConfig {
	bucket := getEnv("BACKUP_S3_BUCKET", "")
	return &BackupConfig{
		Enabled:         bucket != "",
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		Bucket:          bucket,
		Prefix:          getEnv("BACKUP_S3_PREFIX", "finassist"),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		Retention:       getEnvAsInt("BACKUP_RETENTION", 14),
	}
}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
