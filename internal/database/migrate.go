package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationsTable is the bookkeeping table golang-migrate uses for the
// history schema.
const MigrationsTable = "pipeline_schema_migrations"

// Migrate applies every pending history migration to the database at dbURL.
// It returns the schema version after the run.
func Migrate(dbURL string) (uint, error) {
	m, err := newMigrate(dbURL)
	if err != nil {
		return 0, err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("migration version %d is dirty", version)
	}

	slog.Info("history schema up to date", "version", version)
	return version, nil
}

func newMigrate(dbURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	target, err := migrateURL(dbURL)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, target)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		slog.Warn("close migration source", "error", srcErr)
	}
	if dbErr != nil {
		slog.Warn("close migration database", "error", dbErr)
	}
}

// migrateURL rewrites a postgres:// URL to the pgx5:// scheme registered by
// the migrate pgx driver and points it at the history bookkeeping table.
func migrateURL(dbURL string) (string, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("parse database URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}

	q := u.Query()
	if q.Get("x-migrations-table") == "" {
		q.Set("x-migrations-table", MigrationsTable)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
