// Package database is the SQLite persistence layer: users, locations, report
// types, reports and incidents, exposed as typed repository operations.
//
// The connection is capped at a single open conn: the pipeline is the only
// writer and SQLite serializes everything else behind it, which keeps the
// invariants (one active incident per location, monotonic last_updated)
// trivial under concurrent readers.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DB wraps the SQL handle with the repository operations.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if needed) the SQLite database at path with foreign
// keys enabled and UTC timestamps.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_loc=UTC", path)
	handle, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", path, err)
	}
	handle.SetMaxOpenConns(1)
	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", path, err)
	}
	slog.Info("SQLite opened", "path", path)
	return &DB{sql: handle}, nil
}

// Close releases the underlying handle.
func (db *DB) Close() error { return db.sql.Close() }

var tables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT UNIQUE,
		trust_score REAL DEFAULT 1.0,
		reports_made INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS report_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		coords_lat REAL,
		coords_lon REAL
	)`,
	`CREATE TABLE IF NOT EXISTS incidents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		location_id INTEGER NOT NULL,
		type_id INTEGER NOT NULL,
		avg_delay REAL,
		trust_score REAL DEFAULT 0.0,
		status TEXT DEFAULT 'active',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE CASCADE,
		FOREIGN KEY (type_id) REFERENCES report_types(id)
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		incident_id INTEGER,
		location_id INTEGER NOT NULL,
		type_id INTEGER NOT NULL,
		delay_minutes INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (incident_id) REFERENCES incidents(id) ON DELETE SET NULL,
		FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE CASCADE,
		FOREIGN KEY (type_id) REFERENCES report_types(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_loc_type_created
		ON reports(location_id, type_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_loc_type_updated
		ON incidents(location_id, type_id, last_updated)`,
}

// Migrate creates all tables and indexes.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range tables {
		if _, err := db.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
