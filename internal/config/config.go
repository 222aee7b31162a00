package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	MetricsPort string

	// Browser session.
	Headless    bool
	PageTimeout time.Duration
	NavRetries  int
	DelayMin    time.Duration
	DelayMax    time.Duration

	// Collection task bounds.
	MaxNoGrowthPasses int
	MaxDetailFailures int

	// Stock tracking.
	WorkerCount    int
	ReviewMaxPages int

	// Sales estimation. The conversion rate is an assumed review-to-sale
	// ratio, not a measured constant; keep it configurable.
	ConversionRate   float64
	MinStockPairs    int
	ConfidenceMedium int
	ConfidenceHigh   int
	EstimateCacheTTL time.Duration
}

func Load() *Config {
	// Try the repo root first, then the working directory.
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load()
	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),

		Headless:    getBool("HEADLESS", true),
		PageTimeout: getDuration("PAGE_TIMEOUT", 60*time.Second),
		NavRetries:  getInt("NAV_RETRIES", 3),
		DelayMin:    getDuration("DELAY_MIN", 1*time.Second),
		DelayMax:    getDuration("DELAY_MAX", 2500*time.Millisecond),

		MaxNoGrowthPasses: getInt("MAX_NO_GROWTH_PASSES", 10),
		MaxDetailFailures: getInt("MAX_DETAIL_FAILURES", 8),

		WorkerCount:    getInt("WORKER_COUNT", 5),
		ReviewMaxPages: getInt("REVIEW_MAX_PAGES", 5),

		ConversionRate:   getFloat("CONVERSION_RATE", 0.02),
		MinStockPairs:    getInt("MIN_STOCK_PAIRS", 2),
		ConfidenceMedium: getInt("CONFIDENCE_MEDIUM", 5),
		ConfidenceHigh:   getInt("CONFIDENCE_HIGH", 10),
		EstimateCacheTTL: getDuration("ESTIMATE_CACHE_TTL", 6*time.Hour),
	}
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getFloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func getDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if t, err := time.ParseDuration(v); err == nil {
			return t
		}
	}
	return d
}
