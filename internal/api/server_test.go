package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisplanner/backend/internal/core"
	"github.com/denisplanner/backend/internal/database"
	"github.com/denisplanner/backend/internal/gtfs"
	"github.com/denisplanner/backend/internal/infra"
)

func testServer(t *testing.T) (*Server, *database.DB, *infra.MemQueue) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.SeedReportTypes(ctx))

	queue := infra.NewMemQueue(16)
	t.Cleanup(func() { queue.Close() })

	return NewServer(db, queue, gtfs.NewFeed(db), nil), db, queue
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestEnqueueAcceptsJSONPayload(t *testing.T) {
	s, _, queue := testServer(t)

	rec := doRequest(s, "POST", "/enqueue", `{"user_name":"alice","report_type":"DELAY"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Report enqueued", resp["status"])
	assert.EqualValues(t, 1, resp["queue_size"])

	payload, err := queue.BlockingPop(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_name":"alice","report_type":"DELAY"}`, string(payload))
}

func TestEnqueueRejectsBadPayload(t *testing.T) {
	s, _, _ := testServer(t)

	for name, body := range map[string]string{
		"empty":     "",
		"malformed": `{"user_name": `,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(s, "POST", "/enqueue", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Invalid payload"}`, rec.Body.String())
		})
	}
}

type failingQueue struct{}

func (failingQueue) Push(ctx context.Context, payload []byte) error { return errors.New("down") }
func (failingQueue) Len(ctx context.Context) (int64, error)         { return 0, errors.New("down") }

func TestEnqueueQueueFailure(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	s := NewServer(db, failingQueue{}, gtfs.NewFeed(db), nil)
	rec := doRequest(s, "POST", "/enqueue", `{"user_name":"alice"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Could not enqueue report"}`, rec.Body.String())
}

func TestIncidentsEndpointEnrichedWithLocationName(t *testing.T) {
	s, db, _ := testServer(t)
	ctx := context.Background()

	lid, err := db.CreateLocation(ctx, "Krakow", 50.06143, 19.93658)
	require.NoError(t, err)
	tid, err := db.TypeID(ctx, core.TypeDelay)
	require.NoError(t, err)
	_, err = db.InsertIncident(ctx, lid, tid, nil, 0.5, database.StatusActive)
	require.NoError(t, err)

	rec := doRequest(s, "GET", "/api/incidents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var incidents []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &incidents))
	require.Len(t, incidents, 1)
	assert.Equal(t, "Krakow", incidents[0]["location_name"])
	assert.Equal(t, "active", incidents[0]["status"])
}

func TestIncidentsEndpointEmptyArray(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(s, "GET", "/api/incidents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestTypesEndpoint(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(s, "GET", "/api/types", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var types []database.ReportTypeRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &types))
	require.Len(t, types, 5)
	assert.Equal(t, "Delay", types[0].Name)
}

func TestIncidentReportsEndpoint(t *testing.T) {
	s, db, _ := testServer(t)
	ctx := context.Background()

	uid, err := db.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	lid, err := db.CreateLocation(ctx, "L1", 50, 20)
	require.NoError(t, err)
	tid, err := db.TypeID(ctx, core.TypeDelay)
	require.NoError(t, err)
	iid, err := db.InsertIncident(ctx, lid, tid, nil, 0, database.StatusActive)
	require.NoError(t, err)

	delay := 10
	rid, err := db.InsertReport(ctx, uid, lid, tid, &delay)
	require.NoError(t, err)
	require.NoError(t, db.AssignReportToIncident(ctx, rid, iid))

	rec := doRequest(s, "GET", "/api/incidents/1/reports", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var reports []database.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, rid, reports[0].ID)
}

func TestPredictionUnavailableWithoutModel(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(s, "GET", "/api/incidents/1/prediction", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(s, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "connected", resp["queue"])
	assert.Equal(t, "connected", resp["store"])
}
