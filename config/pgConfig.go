package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnv overrides file values with environment variables. Secrets are
// expected to come from the environment rather than the YAML file.
func applyEnv(cfg *AppConfig) {
	cfg.Supplier.APIKey = getEnv("SUPPLIER_API_KEY", cfg.Supplier.APIKey)
	cfg.Supplier.APIURL = getEnv("SUPPLIER_API_URL", cfg.Supplier.APIURL)
	cfg.Supplier.PriceListID = getEnvInt("SUPPLIER_PRICE_LIST_ID", cfg.Supplier.PriceListID)

	cfg.Sync.Concurrency = getEnvInt("SYNC_CONCURRENCY", cfg.Sync.Concurrency)
	cfg.Sync.PerRequestDelay = getEnvDuration("SYNC_PER_REQUEST_DELAY", cfg.Sync.PerRequestDelay)
	cfg.Sync.InterBatchDelay = getEnvDuration("SYNC_INTER_BATCH_DELAY", cfg.Sync.InterBatchDelay)

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.SQLite.Path = getEnv("SQLITE_PATH", cfg.Storage.SQLite.Path)

	pg := &cfg.Storage.Postgres
	pg.Host = getEnv("POSTGRES_HOST", pg.Host)
	pg.Port = getEnv("POSTGRES_PORT", pg.Port)
	pg.User = getEnv("POSTGRES_USER", pg.User)
	pg.Password = getEnv("POSTGRES_PASSWORD", pg.Password)
	pg.DBName = getEnv("POSTGRES_NAME", pg.DBName)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}
