// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/eodledger/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Directory holding ledger.db (always absolute)
	ExtractDir string // base_dir of the per-account extract layout
	LogLevel   string
	Port       int
	DevMode    bool

	// Accounts are the external account ids registered at start-up and
	// processed by the nightly schedule.
	Accounts []string

	Schedule        string
	ScheduleEnabled bool
	Location        *time.Location
	LockTimeout     time.Duration

	Archive ArchiveConfig
}

// ArchiveConfig configures optional archival of raw extract files to an
// S3-compatible bucket (AWS S3, Cloudflare R2, MinIO).
type ArchiveConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether an archive bucket was configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("EODLEDGER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	extractDir := getEnv("EODLEDGER_EXTRACT_DIR", filepath.Join(absDataDir, "extracts"))
	absExtractDir, err := filepath.Abs(extractDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve extract directory path: %w", err)
	}

	tz := getEnv("EODLEDGER_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid EODLEDGER_TIMEZONE %q: %w", tz, err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		ExtractDir:      absExtractDir,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("GO_PORT", 8011),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		Accounts:        utils.ParseCSV(getEnv("EODLEDGER_ACCOUNTS", "")),
		Schedule:        getEnv("EODLEDGER_SCHEDULE", "0 30 22 * * MON-FRI"),
		ScheduleEnabled: getEnvAsBool("EODLEDGER_SCHEDULE_ENABLED", false),
		Location:        loc,
		LockTimeout:     time.Duration(getEnvAsInt("EODLEDGER_LOCK_TIMEOUT_SECONDS", 120)) * time.Second,
		Archive: ArchiveConfig{
			Bucket:    getEnv("EODLEDGER_ARCHIVE_BUCKET", ""),
			Endpoint:  getEnv("EODLEDGER_ARCHIVE_ENDPOINT", ""),
			Region:    getEnv("EODLEDGER_ARCHIVE_REGION", "auto"),
			AccessKey: getEnv("EODLEDGER_ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("EODLEDGER_ARCHIVE_SECRET_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Location == nil {
		return fmt.Errorf("timezone location is required")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be positive, got %s", c.LockTimeout)
	}
	if c.Archive.Enabled() && (c.Archive.AccessKey == "" || c.Archive.SecretKey == "") {
		return fmt.Errorf("archive bucket %q configured without access credentials", c.Archive.Bucket)
	}
	return nil
}

// DatabasePath returns the location of the ledger database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "ledger.db")
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
