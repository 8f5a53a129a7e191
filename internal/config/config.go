// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string  // Base directory for the portfolio store (always absolute)
	Port            int
	LogLevel        string
	DevMode         bool
	BenchmarkTicker string  // Reference index for relative metrics
	RiskFreeRate    float64 // Annual risk-free rate used by performance metrics
	Simulations     int     // Default Monte Carlo simulation count
	TaskRetrySecs   int     // Fixed backoff between async task retries
	Backup          BackupConfig
}

// BackupConfig holds S3 snapshot backup configuration. Backups are disabled
// when Bucket is empty.
type BackupConfig struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // Optional S3-compatible endpoint (e.g. R2, MinIO)
	AccessKey string
	SecretKey string
}

// Enabled reports whether snapshot backups are configured.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("RISKLENS_DATA_DIR", "./data")
	absDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	port, err := strconv.Atoi(getEnv("RISKLENS_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid RISKLENS_PORT: %w", err)
	}

	riskFree, err := strconv.ParseFloat(getEnv("RISKLENS_RISK_FREE_RATE", "0.04"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RISKLENS_RISK_FREE_RATE: %w", err)
	}

	simulations, err := strconv.Atoi(getEnv("RISKLENS_MC_SIMULATIONS", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid RISKLENS_MC_SIMULATIONS: %w", err)
	}

	retrySecs, err := strconv.Atoi(getEnv("RISKLENS_TASK_RETRY_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RISKLENS_TASK_RETRY_SECONDS: %w", err)
	}

	return &Config{
		DataDir:         absDir,
		Port:            port,
		LogLevel:        getEnv("RISKLENS_LOG_LEVEL", "info"),
		DevMode:         getEnv("RISKLENS_DEV_MODE", "false") == "true",
		BenchmarkTicker: getEnv("RISKLENS_BENCHMARK", "^GSPC"),
		RiskFreeRate:    riskFree,
		Simulations:     simulations,
		TaskRetrySecs:   retrySecs,
		Backup: BackupConfig{
			Bucket:    getEnv("RISKLENS_BACKUP_BUCKET", ""),
			Prefix:    getEnv("RISKLENS_BACKUP_PREFIX", "risklens-backup"),
			Region:    getEnv("RISKLENS_BACKUP_REGION", "auto"),
			Endpoint:  getEnv("RISKLENS_BACKUP_ENDPOINT", ""),
			AccessKey: getEnv("RISKLENS_BACKUP_ACCESS_KEY", ""),
			SecretKey: getEnv("RISKLENS_BACKUP_SECRET_KEY", ""),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
