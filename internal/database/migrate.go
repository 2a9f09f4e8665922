package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// MigrationSource returns the schema migrations compiled into the binary.
func MigrationSource() (source.Driver, error) {
	src, err := iofs.New(migrationFiles, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return src, nil
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sqlx.DB, log logger.Logger) error {
	return withMigrator(ctx, db, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("No pending migrations")
				return nil
			}
			return fmt.Errorf("run migrations: %w", err)
		}

		version, _, _ := m.Version()
		log.Info("Migrations applied successfully", logger.Int("version", int(version)))
		return nil
	})
}

// MigrateDown rolls back steps migrations (default 1).
func MigrateDown(ctx context.Context, db *sqlx.DB, steps int, log logger.Logger) error {
	if steps <= 0 {
		steps = 1
	}

	return withMigrator(ctx, db, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("No migrations to rollback")
				return nil
			}
			return fmt.Errorf("rollback migrations: %w", err)
		}

		log.Info("Migrations rolled back successfully", logger.Int("steps", steps))
		return nil
	})
}

// MigrationVersion returns the applied schema version. ok is false when no
// migration has run yet.
func MigrationVersion(ctx context.Context, db *sqlx.DB) (version uint, dirty, ok bool, err error) {
	err = withMigrator(ctx, db, func(m *migrate.Migrate) error {
		v, d, vErr := m.Version()
		if vErr != nil {
			if errors.Is(vErr, migrate.ErrNilVersion) {
				return nil
			}
			return fmt.Errorf("get migration version: %w", vErr)
		}
		version, dirty, ok = v, d, true
		return nil
	})
	return version, dirty, ok, err
}

// withMigrator runs fn on a migrator bound to one pooled connection. Closing
// the migrator releases that connection but leaves the pool open.
func withMigrator(ctx context.Context, db *sqlx.DB, fn func(m *migrate.Migrate) error) error {
	src, err := MigrationSource()
	if err != nil {
		return err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("acquire migration connection: %w", err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		_ = src.Close()
		return fmt.Errorf("create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		_ = src.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	return fn(m)
}
