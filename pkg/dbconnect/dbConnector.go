package dbconnect

import (
	"fmt"

	"suppliersync/config"
	"suppliersync/pkg/dbconnect/postgres"
	"suppliersync/pkg/dbconnect/sqlite"
)

// NewConnector picks the connector matching the configured driver.
func NewConnector(storage config.StorageConfig) (Database, error) {
	switch storage.Driver {
	case config.DriverPostgres:
		pg := storage.Postgres
		return postgres.NewPgConnector(&pg), nil
	case config.DriverSQLite:
		sq := storage.SQLite
		return sqlite.NewSQLiteConnector(&sq), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", storage.Driver)
	}
}
