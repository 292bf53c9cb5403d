package database

import "time"

// Incident lifecycle statuses. The core only ever writes active and
// resolved; pending is reserved for external admin workflows.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
	StatusPending  = "pending"
)

// User is a registered reporter. trust_score lives in [0,1] and is mutated
// only by the pipeline via the reputation engine.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	TrustScore  float64   `json:"trust_score"`
	ReportsMade int       `json:"reports_made"`
	CreatedAt   time.Time `json:"created_at"`
}

// Location is a transit stop or line position. Created on first reference;
// never deleted while referenced.
type Location struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	CoordsLat float64 `json:"coords_lat"`
	CoordsLon float64 `json:"coords_lon"`
}

// ReportTypeRow is a seeded report category.
type ReportTypeRow struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Report is a single user submission. Immutable after insertion except for
// IncidentID, which is assigned once and never reassigned.
type Report struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	IncidentID   *int64    `json:"incident_id"`
	LocationID   int64     `json:"location_id"`
	TypeID       int64     `json:"type_id"`
	DelayMinutes *int      `json:"delay_minutes"`
	CreatedAt    time.Time `json:"created_at"`
}

// Incident is a consolidated, location-scoped event aggregating reports.
type Incident struct {
	ID          int64     `json:"id"`
	LocationID  int64     `json:"location_id"`
	TypeID      int64     `json:"type_id"`
	AvgDelay    *float64  `json:"avg_delay"`
	TrustScore  float64   `json:"trust_score"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// IncidentWithLocation is the API view of an incident, enriched with the
// location name.
type IncidentWithLocation struct {
	Incident
	LocationName string `json:"location_name"`
}
