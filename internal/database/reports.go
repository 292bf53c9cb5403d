package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const reportColumns = "id, user_id, incident_id, location_id, type_id, delay_minutes, created_at"

// InsertReport persists a report and increments the reporter's reports_made
// in the same transaction. Returns the new report id.
func (db *DB) InsertReport(ctx context.Context, userID, locationID, typeID int64, delayMinutes *int) (int64, error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert report: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO reports (user_id, location_id, type_id, delay_minutes, created_at) VALUES (?, ?, ?, ?, ?)",
		userID, locationID, typeID, delayMinutes, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert report: last id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET reports_made = reports_made + 1 WHERE id = ?", userID); err != nil {
		return 0, fmt.Errorf("insert report: bump reports_made: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert report: commit: %w", err)
	}
	return id, nil
}

// AssignReportToIncident links a report to an incident. The link is assigned
// once: a report already linked to a different incident is left untouched.
func (db *DB) AssignReportToIncident(ctx context.Context, reportID, incidentID int64) error {
	_, err := db.sql.ExecContext(ctx,
		"UPDATE reports SET incident_id = ? WHERE id = ? AND (incident_id IS NULL OR incident_id = ?)",
		incidentID, reportID, incidentID)
	if err != nil {
		return fmt.Errorf("assign report %d to incident %d: %w", reportID, incidentID, err)
	}
	return nil
}

// GetReport retrieves a report by id.
func (db *DB) GetReport(ctx context.Context, id int64) (*Report, error) {
	row := db.sql.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE id = ?", id)
	var r Report
	if err := scanReport(row.Scan, &r); err != nil {
		return nil, fmt.Errorf("get report %d: %w", id, err)
	}
	return &r, nil
}

// ListReports returns all reports, newest first.
func (db *DB) ListReports(ctx context.Context) ([]Report, error) {
	return db.queryReports(ctx,
		"SELECT "+reportColumns+" FROM reports ORDER BY created_at DESC, id DESC")
}

// ReportsByIncident returns the reports linked to an incident in
// created_at-descending order (the order Recompute scans them in).
func (db *DB) ReportsByIncident(ctx context.Context, incidentID int64) ([]Report, error) {
	return db.queryReports(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE incident_id = ? ORDER BY created_at DESC, id DESC",
		incidentID)
}

func (db *DB) queryReports(ctx context.Context, query string, args ...any) ([]Report, error) {
	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		if err := scanReport(rows.Scan, &r); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReport(scan func(...any) error, r *Report) error {
	var incidentID sql.NullInt64
	var delay sql.NullInt64
	if err := scan(&r.ID, &r.UserID, &incidentID, &r.LocationID, &r.TypeID, &delay, &r.CreatedAt); err != nil {
		return err
	}
	if incidentID.Valid {
		v := incidentID.Int64
		r.IncidentID = &v
	}
	if delay.Valid {
		v := int(delay.Int64)
		r.DelayMinutes = &v
	}
	return nil
}
