package migration

import (
	"context"
	"database/sql"
	"fmt"

	"suppliersync/pkg/logger"
)

type MigrationInterface interface {
	Name() string
	UpMigration(db *sql.DB, dialect string) error
}

const bookkeeping = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL
)`

// Apply runs every migration not yet recorded in schema_migrations, in order.
func Apply(ctx context.Context, db *sql.DB, dialect string, log logger.Logger, migrations ...MigrationInterface) error {
	if _, err := db.ExecContext(ctx, bookkeeping); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)", m.Name()).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if exists {
			continue
		}

		if err := m.UpMigration(db, dialect); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name(), err)
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO schema_migrations (name, applied_at) VALUES ($1, CURRENT_TIMESTAMP)", m.Name()); err != nil {
			return fmt.Errorf("failed to mark %s migration as complete: %w", m.Name(), err)
		}
		log.Log("Migration '%s' completed successfully.", m.Name())
	}
	return nil
}
