// Package db opens the SQL databases that can back the drafts collection and
// applies the embedded schema migrations.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/atinyakov/sms-drafts/internal/repository"
)

//go:embed migrations
var migrationFS embed.FS

// Open connects to the database for driver ("sqlite3" or "postgres") and
// brings its schema up to date.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case repository.DriverSQLite:
		return InitSQLite(dsn)
	case repository.DriverPostgres:
		return InitPostgres(dsn)
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

// InitSQLite opens a SQLite database file (or in-memory DSN) and migrates it.
func InitSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	if err := migrateUp(repository.DriverSQLite, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitPostgres opens a PostgreSQL connection and migrates it.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	if err := migrateUp(repository.DriverPostgres, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrateUp(name string, driver database.Driver) error {
	src, err := iofs.New(migrationFS, "migrations/"+name)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return fmt.Errorf("instantiate migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
