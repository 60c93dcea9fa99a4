package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DBDriver          string // sqlite | mysql
	DBDSN             string
	DBMaxOpenConns    int
	LogLevel          string
	LogEncoding       string
	LogFile           string
	APIKeyAuth        bool
	BootstrapAPIKey   string
	RateLimitPerMin   int
	BodyLimitBytes    int
	DefaultCurrencyID string
	DefaultTaxRate    string
}

func Load() Config {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] could not read .env: %v", err)
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:             getEnv("DB_DSN", "ferremas.db"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogEncoding:       getEnv("LOG_ENCODING", "json"),
		LogFile:           getEnv("LOG_FILE", ""),
		APIKeyAuth:        getEnvBool("API_KEY_AUTH", true),
		BootstrapAPIKey:   getEnv("BOOTSTRAP_API_KEY", ""),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MIN", 120),
		BodyLimitBytes:    getEnvInt("BODY_LIMIT_BYTES", 1<<20),
		DefaultCurrencyID: getEnv("DEFAULT_CURRENCY_ID", "CLP"),
		DefaultTaxRate:    getEnv("DEFAULT_TAX_RATE", "19"),
	}
	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "mysql" {
		log.Printf("[config] unsupported DB_DRIVER=%s, falling back to sqlite", cfg.DBDriver)
		cfg.DBDriver = "sqlite"
	}
	log.Printf("[config] PORT=%s DB_DRIVER=%s LOG_LEVEL=%s API_KEY_AUTH=%t", cfg.Port, cfg.DBDriver, cfg.LogLevel, cfg.APIKeyAuth)
	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return fallback
}
