// Package migration wraps golang-migrate for the schema lifecycle: apply,
// roll back, inspect and repair the migrations table.
package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator drives schema migrations against an open connection.
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New builds a Migrator reading .sql files from migrationsPath.
func New(db *sql.DB, migrationsPath string, log *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	return &Migrator{m: m, log: log}, nil
}

// apply runs op and normalizes ErrNoChange, which is a clean outcome for
// every migration direction.
func (mg *Migrator) apply(action string, op func() error) (changed bool, err error) {
	if err := op(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.log.Info("Schema already current", zap.String("action", action))
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", action, err)
	}
	return true, nil
}

func (mg *Migrator) logVersion(msg string) {
	version, dirty, err := mg.Version()
	if err != nil {
		mg.log.Warn("Could not read schema version", zap.Error(err))
		return
	}
	mg.log.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	changed, err := mg.apply("migrate up", mg.m.Up)
	if err != nil {
		return err
	}
	if changed {
		mg.logVersion("Migrations applied")
	}
	return nil
}

// Down rolls back every applied migration.
func (mg *Migrator) Down() error {
	changed, err := mg.apply("migrate down", mg.m.Down)
	if err != nil {
		return err
	}
	if changed {
		mg.log.Info("All migrations rolled back")
	}
	return nil
}

// Steps applies n migrations forward, or -n backward.
func (mg *Migrator) Steps(n int) error {
	changed, err := mg.apply("migrate steps", func() error { return mg.m.Steps(n) })
	if err != nil {
		return err
	}
	if changed {
		mg.logVersion("Migration steps applied")
	}
	return nil
}

// GoTo migrates up or down until the schema sits at version.
func (mg *Migrator) GoTo(version uint) error {
	changed, err := mg.apply(fmt.Sprintf("migrate to %d", version), func() error {
		return mg.m.Migrate(version)
	})
	if err != nil {
		return err
	}
	if changed {
		mg.log.Info("Schema moved to version", zap.Uint("version", version))
	}
	return nil
}

// Version reports the current schema version. A database with no applied
// migrations reports version 0 without error.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force overwrites the recorded version without running migrations. Only
// for repairing a dirty state after a failed migration.
func (mg *Migrator) Force(version int) error {
	mg.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every object in the database, data included.
func (mg *Migrator) Drop() error {
	mg.log.Warn("Dropping database schema")
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}

// Close releases the migration source and database handles.
func (mg *Migrator) Close() error {
	sourceErr, dbErr := mg.m.Close()
	if sourceErr != nil {
		return fmt.Errorf("close migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database: %w", dbErr)
	}
	return nil
}
