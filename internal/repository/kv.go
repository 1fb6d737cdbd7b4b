// Package repository provides a SQL-backed key/value store for the drafts
// collection, usable with SQLite or PostgreSQL.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Driver names accepted by NewSQLKV.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type kvQueries struct {
	get string
	set string
}

var queriesByDriver = map[string]kvQueries{
	DriverSQLite: {
		get: `SELECT item_value FROM kv_items WHERE item_key = ?`,
		set: `INSERT INTO kv_items (item_key, item_value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (item_key) DO UPDATE SET item_value = excluded.item_value, updated_at = excluded.updated_at`,
	},
	DriverPostgres: {
		get: `SELECT item_value FROM kv_items WHERE item_key = $1`,
		set: `INSERT INTO kv_items (item_key, item_value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (item_key) DO UPDATE SET item_value = EXCLUDED.item_value, updated_at = EXCLUDED.updated_at`,
	},
}

// SQLKV implements storage.KV on top of the kv_items table.
type SQLKV struct {
	// DB is the database handle for executing queries.
	DB *sql.DB

	q   kvQueries
	now func() time.Time
}

// NewSQLKV creates a SQLKV for the given driver name.
// db must already have the kv_items schema applied.
func NewSQLKV(db *sql.DB, driver string) (*SQLKV, error) {
	q, ok := queriesByDriver[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	return &SQLKV{DB: db, q: q, now: time.Now}, nil
}

// GetItem returns the value stored under key.
func (s *SQLKV) GetItem(key string) ([]byte, bool, error) {
	var value []byte
	err := s.DB.QueryRow(s.q.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("GetItem failed: %w", err)
	}
	return value, true, nil
}

// SetItem upserts value under key. A single statement, so it is atomic.
func (s *SQLKV) SetItem(key string, value []byte) error {
	if _, err := s.DB.Exec(s.q.set, key, value, s.now().Unix()); err != nil {
		return fmt.Errorf("SetItem failed: %w", err)
	}
	return nil
}
