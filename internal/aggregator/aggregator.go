// Package aggregator merges accepted reports into location-scoped incidents
// and recomputes their derived fields: average delay, trust score, dominant
// type and lifecycle status.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/denisplanner/backend/internal/core"
	"github.com/denisplanner/backend/internal/database"
)

// Grace period added on top of avg_delay before an untouched active incident
// is considered stale.
const staleGrace = 5 * time.Minute

// Aggregator is the single writer of the incident graph.
type Aggregator struct {
	db    *database.DB
	grace time.Duration
	now   func() time.Time
}

// New creates an Aggregator over the store.
func New(db *database.DB) *Aggregator {
	return &Aggregator{db: db, grace: staleGrace, now: time.Now}
}

// Process merges one accepted report into the incident graph:
// resolve ids, persist the report, link it to the active incident at the
// location (opening one if none), then recompute the derived fields.
// Returns the incident in its post-update state.
func (a *Aggregator) Process(ctx context.Context, msg *core.ReportMessage) (*database.Incident, error) {
	// Resolve ids. Types and users must exist; locations are open-universe
	// and inserted on first reference.
	typeID, err := a.db.TypeID(ctx, msg.ReportType)
	if err != nil {
		return nil, err
	}
	user, err := a.db.GetUserByName(ctx, msg.UserName)
	if err != nil {
		return nil, err
	}
	locationID, found, err := a.db.LocationIDByName(ctx, msg.LocationName)
	if err != nil {
		return nil, err
	}
	if !found {
		locationID, err = a.db.CreateLocation(ctx, msg.LocationName,
			msg.LocationPos.Latitude, msg.LocationPos.Longitude)
		if err != nil {
			return nil, err
		}
		slog.Info("location created", "name", msg.LocationName, "id", locationID)
	}

	// Persist the report (bumps the reporter's reports_made).
	reportID, err := a.db.InsertReport(ctx, user.ID, locationID, typeID, msg.DelayMinutes)
	if err != nil {
		return nil, err
	}

	// Find the active incident at the location. A stale one is resolved
	// here first, so the new report opens a fresh incident.
	incident, err := a.activeIncident(ctx, locationID)
	if err != nil {
		return nil, err
	}

	if incident == nil {
		// Open a new incident seeded from the report.
		var avg *float64
		if msg.DelayMinutes != nil {
			v := float64(*msg.DelayMinutes)
			avg = &v
		}
		incidentID, err := a.db.InsertIncident(ctx, locationID, typeID, avg, 0, database.StatusActive)
		if err != nil {
			return nil, err
		}
		slog.Info("incident opened", "incident_id", incidentID, "location_id", locationID)
		incident = &database.Incident{ID: incidentID}
	}

	// Link and recompute.
	if err := a.db.AssignReportToIncident(ctx, reportID, incident.ID); err != nil {
		return nil, err
	}
	if err := a.Recompute(ctx, incident.ID); err != nil {
		return nil, err
	}
	return a.db.GetIncident(ctx, incident.ID)
}

// activeIncident fetches the active incident at the location, resolving it
// first if the staleness rule has expired it.
func (a *Aggregator) activeIncident(ctx context.Context, locationID int64) (*database.Incident, error) {
	incident, err := a.db.ActiveIncidentAt(ctx, locationID)
	if err != nil || incident == nil {
		return incident, err
	}
	if a.isStale(incident) {
		if err := a.db.ResolveIncident(ctx, incident.ID, a.now()); err != nil {
			return nil, err
		}
		slog.Info("incident expired", "incident_id", incident.ID)
		return nil, nil
	}
	return incident, nil
}

// Recompute recalculates the derived fields of an incident over all reports
// currently linked to it, writes them in the fixed order (type, avg_delay,
// trust, last_updated) and applies the Solved transition. Idempotent on a
// fixed report set.
func (a *Aggregator) Recompute(ctx context.Context, incidentID int64) error {
	reports, err := a.db.ReportsByIncident(ctx, incidentID)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return nil
	}

	users := make(map[int64]*database.User)
	for _, r := range reports {
		if _, ok := users[r.UserID]; ok {
			continue
		}
		u, err := a.db.GetUser(ctx, r.UserID)
		if err != nil {
			return fmt.Errorf("recompute incident %d: %w", incidentID, err)
		}
		users[r.UserID] = u
	}

	solvedID, err := a.db.TypeID(ctx, core.TypeSolved)
	if err != nil {
		return err
	}

	now := a.now().UTC()
	avg := averageDelay(reports, now)
	trust := trustScore(reports, users, avg, now)
	typeID := dominantType(reports, solvedID)

	if err := a.db.UpdateIncidentDerived(ctx, incidentID, typeID, avg, trust, now); err != nil {
		return err
	}

	if typeID == solvedID {
		if err := a.db.ResolveIncident(ctx, incidentID, now); err != nil {
			return err
		}
		slog.Info("incident resolved", "incident_id", incidentID)
	}
	return nil
}

// normalizedDelay is the minutes remaining until the report's announced
// event, relative to now.
func normalizedDelay(r database.Report, now time.Time) float64 {
	event := r.CreatedAt.Add(time.Duration(*r.DelayMinutes) * time.Minute)
	return event.Sub(now).Minutes()
}

// averageDelay is the mean normalized delay over delay-bearing reports,
// clamped at zero once the announced events have passed. Nil when no report
// carries a delay.
func averageDelay(reports []database.Report, now time.Time) *float64 {
	var sum float64
	var n int
	for _, r := range reports {
		if r.DelayMinutes == nil {
			continue
		}
		sum += normalizedDelay(r, now)
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	if mean < 0 {
		mean = 0
	}
	return &mean
}

// trustScore is the incident trust in [0,1]: each report is weighted by its
// reporter's reputation scaled with experience, attenuated for delay
// outliers, then normalized by the maximum achieved weight. The result is a
// fraction of maximum achievable weight, not a probability.
func trustScore(reports []database.Report, users map[int64]*database.User, avg *float64, now time.Time) float64 {
	weights := make([]float64, 0, len(reports))
	maxW := 0.0
	for _, r := range reports {
		u := users[r.UserID]
		w := u.TrustScore * (1 + float64(u.ReportsMade)/100)
		if r.DelayMinutes != nil && avg != nil && *avg > 0 {
			d := normalizedDelay(r, now)
			atten := 1 - math.Abs(d-*avg)/(*avg)
			if atten < 0.5 {
				atten = 0.5
			}
			w *= atten
		}
		weights = append(weights, w)
		if w > maxW {
			maxW = w
		}
	}
	if maxW <= 0 {
		maxW = 1
	}
	var sum float64
	for _, w := range weights {
		sum += w / maxW
	}
	score := sum / float64(len(reports))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// dominantType picks the incident type from the report histogram. Solved
// anywhere wins outright; otherwise the highest count, with ties broken by
// the most recent report (reports arrive created_at-descending).
func dominantType(reports []database.Report, solvedID int64) int64 {
	counts := make(map[int64]int)
	firstSeen := make(map[int64]int)
	for i, r := range reports {
		if r.TypeID == solvedID {
			return solvedID
		}
		counts[r.TypeID]++
		if _, ok := firstSeen[r.TypeID]; !ok {
			firstSeen[r.TypeID] = i
		}
	}
	best := reports[0].TypeID
	for tid, c := range counts {
		if c > counts[best] || (c == counts[best] && firstSeen[tid] < firstSeen[best]) {
			best = tid
		}
	}
	return best
}

// isStale applies the staleness rule: now > last_updated + avg_delay + grace.
func (a *Aggregator) isStale(incident *database.Incident) bool {
	avg := time.Duration(0)
	if incident.AvgDelay != nil {
		avg = time.Duration(*incident.AvgDelay * float64(time.Minute))
	}
	deadline := incident.LastUpdated.Add(avg + a.grace)
	return a.now().After(deadline)
}

// SweepStale resolves every active incident whose staleness deadline has
// passed. Returns the number of incidents transitioned.
func (a *Aggregator) SweepStale(ctx context.Context) (int, error) {
	active, err := a.db.ListActiveIncidents(ctx)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, inc := range active {
		if !a.isStale(&inc) {
			continue
		}
		if err := a.db.ResolveIncident(ctx, inc.ID, a.now()); err != nil {
			return swept, err
		}
		swept++
	}
	if swept > 0 {
		slog.Info("stale incidents resolved", "count", swept)
	}
	return swept, nil
}

// StartSweeper runs SweepStale on a timer until the context is cancelled.
func (a *Aggregator) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := a.SweepStale(ctx); err != nil {
					slog.Error("stale sweep failed", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
