package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const incidentColumns = "id, location_id, type_id, avg_delay, trust_score, status, created_at, last_updated"

// InsertIncident opens a new incident and returns its id.
func (db *DB) InsertIncident(ctx context.Context, locationID, typeID int64, avgDelay *float64, trustScore float64, status string) (int64, error) {
	now := time.Now().UTC()
	res, err := db.sql.ExecContext(ctx,
		"INSERT INTO incidents (location_id, type_id, avg_delay, trust_score, status, created_at, last_updated) VALUES (?, ?, ?, ?, ?, ?, ?)",
		locationID, typeID, avgDelay, trustScore, status, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert incident: %w", err)
	}
	return res.LastInsertId()
}

// GetIncident retrieves an incident by id.
func (db *DB) GetIncident(ctx context.Context, id int64) (*Incident, error) {
	row := db.sql.QueryRowContext(ctx,
		"SELECT "+incidentColumns+" FROM incidents WHERE id = ?", id)
	var inc Incident
	if err := scanIncident(row.Scan, &inc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get incident %d: %w", id, err)
	}
	return &inc, nil
}

// ActiveIncidentAt returns the active incident at the location with the
// greatest last_updated, or nil when the location is quiet.
func (db *DB) ActiveIncidentAt(ctx context.Context, locationID int64) (*Incident, error) {
	row := db.sql.QueryRowContext(ctx,
		"SELECT "+incidentColumns+" FROM incidents WHERE location_id = ? AND status = ? ORDER BY last_updated DESC LIMIT 1",
		locationID, StatusActive)
	var inc Incident
	if err := scanIncident(row.Scan, &inc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("active incident at location %d: %w", locationID, err)
	}
	return &inc, nil
}

// UpdateIncidentDerived writes the recomputed derived fields in the fixed
// order type, avg_delay, trust_score, last_updated inside one transaction.
func (db *DB) UpdateIncidentDerived(ctx context.Context, id int64, typeID int64, avgDelay *float64, trustScore float64, now time.Time) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update incident %d: begin: %w", id, err)
	}
	defer tx.Rollback()

	steps := []struct {
		query string
		arg   any
	}{
		{"UPDATE incidents SET type_id = ? WHERE id = ?", typeID},
		{"UPDATE incidents SET avg_delay = ? WHERE id = ?", avgDelay},
		{"UPDATE incidents SET trust_score = ? WHERE id = ?", trustScore},
		{"UPDATE incidents SET last_updated = ? WHERE id = ?", now.UTC()},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.query, s.arg, id); err != nil {
			return fmt.Errorf("update incident %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// ResolveIncident transitions an incident to resolved. Idempotent: resolving
// an already-resolved incident is a no-op that does not touch last_updated.
func (db *DB) ResolveIncident(ctx context.Context, id int64, now time.Time) error {
	_, err := db.sql.ExecContext(ctx,
		"UPDATE incidents SET status = ?, last_updated = ? WHERE id = ? AND status = ?",
		StatusResolved, now.UTC(), id, StatusActive)
	if err != nil {
		return fmt.Errorf("resolve incident %d: %w", id, err)
	}
	return nil
}

// DeleteIncident removes an incident; the FK cascade nulls incident_id on its
// reports.
func (db *DB) DeleteIncident(ctx context.Context, id int64) error {
	_, err := db.sql.ExecContext(ctx, "DELETE FROM incidents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete incident %d: %w", id, err)
	}
	return nil
}

// ListIncidents returns all incidents enriched with their location name,
// most recently updated first.
func (db *DB) ListIncidents(ctx context.Context) ([]IncidentWithLocation, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT i.id, i.location_id, i.type_id, i.avg_delay, i.trust_score,
		       i.status, i.created_at, i.last_updated, l.name
		FROM incidents i
		JOIN locations l ON l.id = i.location_id
		ORDER BY i.last_updated DESC, i.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []IncidentWithLocation
	for rows.Next() {
		var inc IncidentWithLocation
		var avg sql.NullFloat64
		if err := rows.Scan(&inc.ID, &inc.LocationID, &inc.TypeID, &avg, &inc.TrustScore,
			&inc.Status, &inc.CreatedAt, &inc.LastUpdated, &inc.LocationName); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		if avg.Valid {
			v := avg.Float64
			inc.AvgDelay = &v
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// ActiveIncidentsSince returns active incidents whose last_updated is at or
// after the cutoff, joined with their location name. Used by the GTFS feed.
func (db *DB) ActiveIncidentsSince(ctx context.Context, cutoff time.Time) ([]IncidentWithLocation, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT i.id, i.location_id, i.type_id, i.avg_delay, i.trust_score,
		       i.status, i.created_at, i.last_updated, l.name
		FROM incidents i
		JOIN locations l ON l.id = i.location_id
		WHERE i.status = ? AND i.last_updated >= ?
		ORDER BY i.id`, StatusActive, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("active incidents since %s: %w", cutoff, err)
	}
	defer rows.Close()

	var out []IncidentWithLocation
	for rows.Next() {
		var inc IncidentWithLocation
		var avg sql.NullFloat64
		if err := rows.Scan(&inc.ID, &inc.LocationID, &inc.TypeID, &avg, &inc.TrustScore,
			&inc.Status, &inc.CreatedAt, &inc.LastUpdated, &inc.LocationName); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		if avg.Valid {
			v := avg.Float64
			inc.AvgDelay = &v
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// ListActiveIncidents returns every active incident. Used by the stale
// sweeper.
func (db *DB) ListActiveIncidents(ctx context.Context) ([]Incident, error) {
	rows, err := db.sql.QueryContext(ctx,
		"SELECT "+incidentColumns+" FROM incidents WHERE status = ? ORDER BY id", StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var inc Incident
		if err := scanIncident(rows.Scan, &inc); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func scanIncident(scan func(...any) error, inc *Incident) error {
	var avg sql.NullFloat64
	if err := scan(&inc.ID, &inc.LocationID, &inc.TypeID, &avg, &inc.TrustScore,
		&inc.Status, &inc.CreatedAt, &inc.LastUpdated); err != nil {
		return err
	}
	if avg.Valid {
		v := avg.Float64
		inc.AvgDelay = &v
	}
	return nil
}
