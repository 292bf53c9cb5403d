package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisplanner/backend/internal/core"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.SeedReportTypes(ctx))
	return db
}

func TestSeedReportTypesIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.SeedReportTypes(ctx))
	types, err := db.ListReportTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 5)
	assert.Equal(t, "Delay", types[0].Name)
	assert.Equal(t, "Other", types[4].Name)
}

func TestTypeIDRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	id, err := db.TypeID(ctx, core.TypeSolved)
	require.NoError(t, err)
	name, err := db.TypeName(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Solved", name)

	_, err = db.TypeName(ctx, 999)
	assert.ErrorIs(t, err, core.ErrUnknownType)
}

func TestUserLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	id, err := db.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)

	u, err := db.GetUserByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, 1.0, u.TrustScore) // schema default
	assert.Zero(t, u.ReportsMade)

	require.NoError(t, db.UpdateTrustScore(ctx, id, 0.42))
	u, err = db.GetUser(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, u.TrustScore, 1e-9)

	_, err = db.GetUserByName(ctx, "nobody")
	assert.ErrorIs(t, err, core.ErrUnknownUser)
}

func TestUsernameUnique(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.CreateUser(ctx, "alice", "a1@example.com")
	require.NoError(t, err)
	_, err = db.CreateUser(ctx, "alice", "a2@example.com")
	assert.Error(t, err)
}

// Inserting a report bumps the reporter's reports_made by exactly one in the
// same transaction.
func TestInsertReportIncrementsReportsMade(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	uid, err := db.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	lid, err := db.CreateLocation(ctx, "L1", 50.06143, 19.93658)
	require.NoError(t, err)
	tid, err := db.TypeID(ctx, core.TypeDelay)
	require.NoError(t, err)

	delay := 10
	for i := 1; i <= 3; i++ {
		_, err := db.InsertReport(ctx, uid, lid, tid, &delay)
		require.NoError(t, err)
		u, err := db.GetUser(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, i, u.ReportsMade)
	}
}

func TestLocationGetOrCreate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, found, err := db.LocationIDByName(ctx, "L1")
	require.NoError(t, err)
	assert.False(t, found)

	id, err := db.CreateLocation(ctx, "L1", 50.0, 20.0)
	require.NoError(t, err)

	got, found, err := db.LocationIDByName(ctx, "L1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, got)

	loc, err := db.GetLocation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "L1", loc.Name)
	assert.InDelta(t, 50.0, loc.CoordsLat, 1e-9)
}

func TestActiveIncidentAtPicksMostRecent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	lid, err := db.CreateLocation(ctx, "L1", 50, 20)
	require.NoError(t, err)
	tid, err := db.TypeID(ctx, core.TypeDelay)
	require.NoError(t, err)

	first, err := db.InsertIncident(ctx, lid, tid, nil, 0, StatusActive)
	require.NoError(t, err)
	require.NoError(t, db.ResolveIncident(ctx, first, time.Now()))

	second, err := db.InsertIncident(ctx, lid, tid, nil, 0, StatusActive)
	require.NoError(t, err)

	active, err := db.ActiveIncidentAt(ctx, lid)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second, active.ID)

	require.NoError(t, db.ResolveIncident(ctx, second, time.Now()))
	active, err = db.ActiveIncidentAt(ctx, lid)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestUpdateIncidentDerived(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	lid, err := db.CreateLocation(ctx, "L1", 50, 20)
	require.NoError(t, err)
	delayID, err := db.TypeID(ctx, core.TypeDelay)
	require.NoError(t, err)
	accidentID, err := db.TypeID(ctx, core.TypeAccident)
	require.NoError(t, err)

	id, err := db.InsertIncident(ctx, lid, delayID, nil, 0, StatusActive)
	require.NoError(t, err)
	before, err := db.GetIncident(ctx, id)
	require.NoError(t, err)

	avg := 12.5
	now := time.Now().UTC().Add(time.Second)
	require.NoError(t, db.UpdateIncidentDerived(ctx, id, accidentID, &avg, 0.8, now))

	inc, err := db.GetIncident(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, accidentID, inc.TypeID)
	require.NotNil(t, inc.AvgDelay)
	assert.InDelta(t, 12.5, *inc.AvgDelay, 1e-9)
	assert.InDelta(t, 0.8, inc.TrustScore, 1e-9)
	assert.False(t, inc.LastUpdated.Before(before.LastUpdated))
}

func TestResolveIncidentIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	lid, err := db.CreateLocation(ctx, "L1", 50, 20)
	require.NoError(t, err)
	tid, err := db.TypeID(ctx, core.TypeDelay)
	require.NoError(t, err)
	id, err := db.InsertIncident(ctx, lid, tid, nil, 0, StatusActive)
	require.NoError(t, err)

	first := time.Now().UTC()
	require.NoError(t, db.ResolveIncident(ctx, id, first))
	inc, err := db.GetIncident(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusResolved, inc.Status)
	resolvedAt := inc.LastUpdated

	// A second resolve must not touch the row.
	require.NoError(t, db.ResolveIncident(ctx, id, first.Add(time.Hour)))
	inc, err = db.GetIncident(ctx, id)
	require.NoError(t, err)
	assert.True(t, resolvedAt.Equal(inc.LastUpdated))
}

// Deleting an incident nulls incident_id on its reports via the FK cascade.
func TestDeleteIncidentUnlinksReports(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	uid, err := db.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	lid, err := db.CreateLocation(ctx, "L1", 50, 20)
	require.NoError(t, err)
	tid, err := db.TypeID(ctx, core.TypeDelay)
	require.NoError(t, err)

	iid, err := db.InsertIncident(ctx, lid, tid, nil, 0, StatusActive)
	require.NoError(t, err)
	rid, err := db.InsertReport(ctx, uid, lid, tid, nil)
	require.NoError(t, err)
	require.NoError(t, db.AssignReportToIncident(ctx, rid, iid))

	require.NoError(t, db.DeleteIncident(ctx, iid))
	r, err := db.GetReport(ctx, rid)
	require.NoError(t, err)
	assert.Nil(t, r.IncidentID)
}

// Once linked, a report cannot be reassigned to a different incident.
func TestAssignReportLinkIsMonotonic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	uid, err := db.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	lid, err := db.CreateLocation(ctx, "L1", 50, 20)
	require.NoError(t, err)
	tid, err := db.TypeID(ctx, core.TypeDelay)
	require.NoError(t, err)

	first, err := db.InsertIncident(ctx, lid, tid, nil, 0, StatusActive)
	require.NoError(t, err)
	second, err := db.InsertIncident(ctx, lid, tid, nil, 0, StatusActive)
	require.NoError(t, err)

	rid, err := db.InsertReport(ctx, uid, lid, tid, nil)
	require.NoError(t, err)
	require.NoError(t, db.AssignReportToIncident(ctx, rid, first))
	require.NoError(t, db.AssignReportToIncident(ctx, rid, second))

	r, err := db.GetReport(ctx, rid)
	require.NoError(t, err)
	require.NotNil(t, r.IncidentID)
	assert.Equal(t, first, *r.IncidentID)
}

func TestListIncidentsEnrichedWithLocationName(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	lid, err := db.CreateLocation(ctx, "trip42@stop7", 50, 20)
	require.NoError(t, err)
	tid, err := db.TypeID(ctx, core.TypeDelay)
	require.NoError(t, err)
	_, err = db.InsertIncident(ctx, lid, tid, nil, 0, StatusActive)
	require.NoError(t, err)

	incidents, err := db.ListIncidents(ctx)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, "trip42@stop7", incidents[0].LocationName)
}
