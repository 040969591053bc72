package config

import (
	"os"
	"strconv"
	"time"
)

// Config centralizes runtime settings for the API, the CLI and the export workers.
type Config struct {
	Port     string
	LogLevel string

	DatabaseURL string

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisEventsStream string

	CacheTTLSeconds int
	CacheMaxEntries int

	ReportMaxSpanDays          int
	ReportTopProductsLimit     int
	ReportTopCustomersLimit    int
	ReportLowStockLimit        int
	ReportBreakdownLimit       int
	ReportMovementLookbackDays int
	ReportMovementLimit        int
	ReportHighValueThreshold   float64
	ReportMediumValueThreshold float64
	FastPathEnabled            bool

	ExportTickMS           int
	ExportProgressStep     int
	ExportRetentionMinutes int
	ExportMaxJobs          int
	ExportSweepSeconds     int

	AggregateRefreshCron string

	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() Config {
	return Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RedisEventsStream: getEnv("REDIS_EVENTS_STREAM", "report_export_events"),

		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 300),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 512),

		ReportMaxSpanDays:          getEnvInt("REPORT_MAX_SPAN_DAYS", 366),
		ReportTopProductsLimit:     getEnvInt("REPORT_TOP_PRODUCTS_LIMIT", 10),
		ReportTopCustomersLimit:    getEnvInt("REPORT_TOP_CUSTOMERS_LIMIT", 10),
		ReportLowStockLimit:        getEnvInt("REPORT_LOW_STOCK_LIMIT", 20),
		ReportBreakdownLimit:       getEnvInt("REPORT_BREAKDOWN_LIMIT", 10),
		ReportMovementLookbackDays: getEnvInt("REPORT_MOVEMENT_LOOKBACK_DAYS", 30),
		ReportMovementLimit:        getEnvInt("REPORT_MOVEMENT_LIMIT", 50),
		ReportHighValueThreshold:   getEnvFloat("REPORT_HIGH_VALUE_THRESHOLD", 1000),
		ReportMediumValueThreshold: getEnvFloat("REPORT_MEDIUM_VALUE_THRESHOLD", 250),
		FastPathEnabled:            getEnvBool("FAST_PATH_ENABLED", true),

		ExportTickMS:           getEnvInt("EXPORT_TICK_MS", 500),
		ExportProgressStep:     getEnvInt("EXPORT_PROGRESS_STEP", 10),
		ExportRetentionMinutes: getEnvInt("EXPORT_RETENTION_MINUTES", 60),
		ExportMaxJobs:          getEnvInt("EXPORT_MAX_JOBS", 200),
		ExportSweepSeconds:     getEnvInt("EXPORT_SWEEP_SECONDS", 60),

		AggregateRefreshCron: getEnv("AGGREGATE_REFRESH_CRON", "15 2 * * *"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
	}
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c Config) MaxSpan() time.Duration {
	return time.Duration(c.ReportMaxSpanDays) * 24 * time.Hour
}

func (c Config) MovementLookback() time.Duration {
	return time.Duration(c.ReportMovementLookbackDays) * 24 * time.Hour
}

func (c Config) ExportTick() time.Duration {
	return time.Duration(c.ExportTickMS) * time.Millisecond
}

func (c Config) ExportRetention() time.Duration {
	return time.Duration(c.ExportRetentionMinutes) * time.Minute
}

func (c Config) ExportSweepInterval() time.Duration {
	return time.Duration(c.ExportSweepSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
