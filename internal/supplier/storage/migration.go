package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"suppliersync/config"
	"suppliersync/pkg/dbconnect/migration"
)

// columnTypes differ only in the id column, money and time types.
func columnTypes(dialect string) (id, money, ts string) {
	if dialect == config.DriverPostgres {
		return "BIGSERIAL PRIMARY KEY", "NUMERIC(14,2)", "TIMESTAMPTZ"
	}
	// TEXT keeps decimals exact in SQLite.
	return "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT", "TIMESTAMP"
}

type SupplierProducts struct{}

func (m *SupplierProducts) Name() string { return "supplier_products" }

func (m *SupplierProducts) UpMigration(db *sql.DB, dialect string) error {
	id, money, ts := columnTypes(dialect)
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS supplier_products (
		id %[1]s,
		external_id TEXT NOT NULL,
		sku TEXT,
		name TEXT NOT NULL,
		name_key TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		flavor TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		size TEXT NOT NULL DEFAULT '',
		wholesale_price %[2]s NOT NULL,
		retail_price %[2]s NOT NULL,
		margin_percent %[2]s NOT NULL,
		stock_level INTEGER NOT NULL DEFAULT 0,
		in_stock BOOLEAN NOT NULL DEFAULT FALSE,
		image_url TEXT NOT NULL DEFAULT '',
		barcode TEXT NOT NULL DEFAULT '',
		expiry_date TEXT NOT NULL DEFAULT '',
		featured BOOLEAN NOT NULL DEFAULT FALSE,
		local_image_path TEXT NOT NULL DEFAULT '',
		created_at %[3]s NOT NULL,
		updated_at %[3]s NOT NULL
		)`, id, money, ts),
		`CREATE UNIQUE INDEX IF NOT EXISTS supplier_products_external_id_key ON supplier_products (external_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS supplier_products_name_key_key ON supplier_products (name_key)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS supplier_products_sku_key ON supplier_products (sku)`,
	}
	return execAll(db, statements)
}

type SyncRuns struct{}

func (m *SyncRuns) Name() string { return "sync_runs" }

func (m *SyncRuns) UpMigration(db *sql.DB, dialect string) error {
	id, _, ts := columnTypes(dialect)
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sync_runs (
		id %[1]s,
		run_id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		mode TEXT NOT NULL,
		identifiers INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		fetched INTEGER NOT NULL,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		skipped_duplicate INTEGER NOT NULL,
		skipped_margin INTEGER NOT NULL,
		skipped_invalid INTEGER NOT NULL,
		store_errors INTEGER NOT NULL,
		image_failures INTEGER NOT NULL,
		started_at %[2]s NOT NULL,
		finished_at %[2]s NOT NULL,
		errors TEXT NOT NULL DEFAULT ''
		)`, id, ts),
	}
	return execAll(db, statements)
}

func execAll(db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stmt), "\n")
	return line
}

// Migrations lists the schema of the catalog in apply order.
func Migrations() []migration.MigrationInterface {
	return []migration.MigrationInterface{&SupplierProducts{}, &SyncRuns{}}
}
