// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// DBPath is the SQLite database file backing the price cache and
	// portfolio tables.
	DBPath string

	// NavDir is the directory holding per-ISIN fund NAV CSV files.
	NavDir string

	// ServerPort is the HTTP API listen port.
	ServerPort string

	// TargetCurrency is the portfolio's home currency; series are
	// converted into it unless the caller overrides.
	TargetCurrency string

	// TwelveData contains provider API settings.
	TwelveData TwelveDataConfig

	// Scraper contains browser-automation settings.
	Scraper ScraperConfig

	// Breaker contains per-source circuit breaker settings.
	Breaker BreakerConfig

	// Backfill contains settings for the portfolio backfill run.
	Backfill BackfillConfig

	// TierTimeout is the hard deadline for one source-tier fetch.
	TierTimeout time.Duration
}

// TwelveDataConfig holds provider API settings.
type TwelveDataConfig struct {
	// APIKey enables the provider API tier; empty disables it.
	APIKey string

	// MinInterval is the minimum spacing between provider calls.
	MinInterval time.Duration
}

// ScraperConfig holds browser-automation settings.
type ScraperConfig struct {
	// Headless runs the browser without a window. Disable for debugging.
	Headless bool

	// PageTimeout bounds a single page load plus table read.
	PageTimeout time.Duration

	// MaxPages caps history pagination per fetch.
	MaxPages int
}

// BreakerConfig holds circuit breaker settings shared by every
// (asset, tier) breaker.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure count that opens a breaker.
	MaxFailures int

	// Cooldown is how long an open breaker skips its source before the
	// next request probes it again.
	Cooldown time.Duration
}

// BackfillConfig holds settings for the backfill command.
type BackfillConfig struct {
	// LookbackDays is how far back from today to fill per holding.
	LookbackDays int

	// Concurrency caps simultaneous per-holding fetches.
	Concurrency int
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		DBPath:         getEnv("PRICERADAR_DB", "priceradar.db"),
		NavDir:         getEnv("NAV_DIR", "data/nav"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		TargetCurrency: getEnv("TARGET_CURRENCY", "JPY"),
		TwelveData: TwelveDataConfig{
			APIKey:      getEnv("TWELVEDATA_API_KEY", ""),
			MinInterval: time.Duration(getEnvInt("TWELVEDATA_MIN_INTERVAL_SECONDS", 8)) * time.Second,
		},
		Scraper: ScraperConfig{
			Headless:    getEnv("SCRAPER_HEADLESS", "true") == "true",
			PageTimeout: time.Duration(getEnvInt("SCRAPER_PAGE_TIMEOUT_SECONDS", 45)) * time.Second,
			MaxPages:    getEnvInt("SCRAPER_MAX_PAGES", 40),
		},
		Breaker: BreakerConfig{
			MaxFailures: getEnvInt("BREAKER_MAX_FAILURES", 3),
			Cooldown:    time.Duration(getEnvInt("BREAKER_COOLDOWN_SECONDS", 300)) * time.Second,
		},
		Backfill: BackfillConfig{
			LookbackDays: getEnvInt("BACKFILL_LOOKBACK_DAYS", 365),
			Concurrency:  getEnvInt("BACKFILL_CONCURRENCY", 4),
		},
		TierTimeout: time.Duration(getEnvInt("TIER_TIMEOUT_SECONDS", 90)) * time.Second,
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
