package config

import (
	"fmt"
	"net/url"
)

type DbConfig interface {
	GetConnectionString() string
	DriverName() string
}

// PostgresConfig represents the configuration needed to connect to a PostgreSQL database
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (pc *PostgresConfig) GetConnectionString() string {
	sslMode := pc.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, sslMode)
}

func (pc *PostgresConfig) DriverName() string { return DriverPostgres }

// SQLiteConfig is the single-file store used for local runs and tests.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// GetConnectionString enables a busy timeout and immediate transactions so that
// concurrent upserts queue on the write lock instead of failing with SQLITE_BUSY.
func (sc *SQLiteConfig) GetConnectionString() string {
	q := url.Values{}
	q.Set("_busy_timeout", "10000")
	q.Set("_txlock", "immediate")
	q.Set("_foreign_keys", "on")
	return "file:" + sc.Path + "?" + q.Encode()
}

func (sc *SQLiteConfig) DriverName() string { return DriverSQLite }
