// Package config loads the cashier service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	HTTPAddr       string
	InventoryURL   string
	CustomerURL    string
	TransactionURL string

	HTTPTimeout        time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	RedisAddr   string
	SnapshotTTL time.Duration

	RabbitURL      string
	RabbitExchange string

	ReceiptsDBPath    string
	ReceiptsCacheSize int

	CORSOrigins []string
	LogLevel    string
	Env         string
}

const ShutdownGrace = 10 * time.Second

// Load reads a .env file when present and then the process environment.
// Malformed numbers and durations fall back to their defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("config: .env not loaded")
	}

	backend := getEnv("POS_BACKEND_URL", "http://localhost:8000")
	return Config{
		HTTPAddr:       getEnv("POS_HTTP_ADDR", ":8080"),
		InventoryURL:   getEnv("INVENTORY_URL", backend),
		CustomerURL:    getEnv("CUSTOMER_URL", backend),
		TransactionURL: getEnv("TRANSACTION_URL", backend),

		HTTPTimeout:        getDuration("POS_HTTP_TIMEOUT", 5*time.Second),
		BreakerMaxFailures: uint32(getInt("BREAKER_MAX_FAILURES", 5)),
		BreakerOpenTimeout: getDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		RedisAddr:   getEnv("REDIS_ADDR", ""),
		SnapshotTTL: getDuration("SNAPSHOT_TTL", time.Minute),

		RabbitURL:      getEnv("RABBIT_URL", ""),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "domain_events"),

		ReceiptsDBPath:    getEnv("RECEIPTS_DB_PATH", "./receipts.db"),
		ReceiptsCacheSize: getInt("RECEIPTS_CACHE_SIZE", 256),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Env:         getEnv("SERVICE_ENV", "dev"),
	}
}

func (c Config) IsDev() bool { return c.Env == "dev" || c.Env == "development" }

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v, err := strconv.Atoi(getEnv(k, ""))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func getDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(k, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
