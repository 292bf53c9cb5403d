package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/denisplanner/backend/internal/core"
)

// SeedReportTypes inserts the closed report-type set, skipping names that
// already exist. Idempotent across restarts.
func (db *DB) SeedReportTypes(ctx context.Context) error {
	for _, t := range core.AllReportTypes() {
		_, err := db.sql.ExecContext(ctx,
			"INSERT OR IGNORE INTO report_types (name) VALUES (?)", t.String())
		if err != nil {
			return fmt.Errorf("seed report type %s: %w", t, err)
		}
	}
	return nil
}

// TypeID resolves a report type to its row id. A missing row means the seeded
// set has drifted from the enumeration, which is fatal upstream.
func (db *DB) TypeID(ctx context.Context, t core.ReportType) (int64, error) {
	var id int64
	err := db.sql.QueryRowContext(ctx,
		"SELECT id FROM report_types WHERE name = ?", t.String()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s not seeded", core.ErrUnknownType, t)
	}
	if err != nil {
		return 0, fmt.Errorf("type id for %s: %w", t, err)
	}
	return id, nil
}

// TypeName resolves a row id back to its seeded name.
func (db *DB) TypeName(ctx context.Context, id int64) (string, error) {
	var name string
	err := db.sql.QueryRowContext(ctx,
		"SELECT name FROM report_types WHERE id = ?", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: type id %d", core.ErrUnknownType, id)
	}
	if err != nil {
		return "", fmt.Errorf("type name for %d: %w", id, err)
	}
	return name, nil
}

// ListReportTypes returns the seeded lookup table.
func (db *DB) ListReportTypes(ctx context.Context) ([]ReportTypeRow, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT id, name FROM report_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list report types: %w", err)
	}
	defer rows.Close()

	var out []ReportTypeRow
	for rows.Next() {
		var r ReportTypeRow
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scan report type: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
