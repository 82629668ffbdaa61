package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
)

// MigrateUp applies every pending migration and returns the resulting schema
// version.
func MigrateUp(connString string) (uint, error) {
	m, err := GetMigrate(connString)
	if err != nil {
		return 0, err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return currentVersion(m)
}

// MigrateDown reverts the given number of migrations. A non-positive steps
// value reverts all of them.
func MigrateDown(connString string, steps int) (uint, error) {
	m, err := GetMigrate(connString)
	if err != nil {
		return 0, err
	}
	defer closeMigrate(m)

	if steps <= 0 {
		err = m.Down()
	} else {
		err = m.Steps(-steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to revert migrations: %w", err)
	}
	return currentVersion(m)
}

func currentVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		slog.Warn("Failed to close migrate instance", "source_error", srcErr, "database_error", dbErr)
	}
}
