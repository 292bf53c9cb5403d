package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateLocation inserts a new location and returns its id.
func (db *DB) CreateLocation(ctx context.Context, name string, lat, lon float64) (int64, error) {
	res, err := db.sql.ExecContext(ctx,
		"INSERT INTO locations (name, coords_lat, coords_lon) VALUES (?, ?, ?)",
		name, lat, lon)
	if err != nil {
		return 0, fmt.Errorf("create location %q: %w", name, err)
	}
	return res.LastInsertId()
}

// LocationIDByName resolves a location name to its id. Returns (0, false, nil)
// when no such location exists: locations are open-universe and the caller
// inserts on miss.
func (db *DB) LocationIDByName(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := db.sql.QueryRowContext(ctx,
		"SELECT id FROM locations WHERE name = ? ORDER BY id LIMIT 1", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("location id for %q: %w", name, err)
	}
	return id, true, nil
}

// GetLocation retrieves a location by id.
func (db *DB) GetLocation(ctx context.Context, id int64) (*Location, error) {
	var l Location
	var lat, lon sql.NullFloat64
	err := db.sql.QueryRowContext(ctx,
		"SELECT id, name, coords_lat, coords_lon FROM locations WHERE id = ?", id).
		Scan(&l.ID, &l.Name, &lat, &lon)
	if err != nil {
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	l.CoordsLat, l.CoordsLon = lat.Float64, lon.Float64
	return &l, nil
}

// ListLocations returns the location lookup table.
func (db *DB) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := db.sql.QueryContext(ctx,
		"SELECT id, name, coords_lat, coords_lon FROM locations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var l Location
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&l.ID, &l.Name, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		l.CoordsLat, l.CoordsLon = lat.Float64, lon.Float64
		out = append(out, l)
	}
	return out, rows.Err()
}
