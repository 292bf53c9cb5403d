// Package gtfs emits active incidents as a GTFS-Realtime FeedMessage of trip
// updates. Location names follow the tripid@stopid convention; names that do
// not parse are skipped.
package gtfs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/denisplanner/backend/internal/database"
)

// Only incidents touched within this window are emitted.
const freshnessWindow = 60 * time.Minute

// Above this average delay (minutes) the stop time is marked SKIPPED.
const skipThresholdMinutes = 30

// Feed builds trip-update feeds from the incident store.
type Feed struct {
	db  *database.DB
	now func() time.Time
}

// NewFeed creates a Feed over the store.
func NewFeed(db *database.DB) *Feed {
	return &Feed{db: db, now: time.Now}
}

// BuildTripUpdates assembles the FeedMessage for every active incident whose
// last_updated is within the freshness window and whose avg_delay is
// positive.
func (f *Feed) BuildTripUpdates(ctx context.Context) (*gtfsrt.FeedMessage, error) {
	now := f.now().UTC()
	incidents, err := f.db.ActiveIncidentsSince(ctx, now.Add(-freshnessWindow))
	if err != nil {
		return nil, err
	}

	feed := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsrt.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}

	for _, inc := range incidents {
		if inc.AvgDelay == nil || *inc.AvgDelay <= 0 {
			continue
		}
		tripID, stopID, ok := splitLocationName(inc.LocationName)
		if !ok {
			slog.Debug("gtfs: location name not in tripid@stopid form", "name", inc.LocationName)
			continue
		}

		delaySeconds := int32(*inc.AvgDelay * 60)
		relationship := gtfsrt.TripUpdate_StopTimeUpdate_SCHEDULED
		if *inc.AvgDelay > skipThresholdMinutes {
			relationship = gtfsrt.TripUpdate_StopTimeUpdate_SKIPPED
		}

		feed.Entity = append(feed.Entity, &gtfsrt.FeedEntity{
			Id: proto.String(fmt.Sprintf("incident_%d", inc.ID)),
			TripUpdate: &gtfsrt.TripUpdate{
				Trip: &gtfsrt.TripDescriptor{
					TripId: proto.String(tripID),
				},
				StopTimeUpdate: []*gtfsrt.TripUpdate_StopTimeUpdate{
					{
						StopId:               proto.String(stopID),
						ScheduleRelationship: relationship.Enum(),
						Arrival: &gtfsrt.TripUpdate_StopTimeEvent{
							Delay: proto.Int32(delaySeconds),
						},
						Departure: &gtfsrt.TripUpdate_StopTimeEvent{
							Delay: proto.Int32(delaySeconds),
						},
					},
				},
			},
		})
	}
	return feed, nil
}

// Handler serves the feed as application/x-protobuf.
func (f *Feed) Handler(w http.ResponseWriter, r *http.Request) {
	feed, err := f.BuildTripUpdates(r.Context())
	if err != nil {
		slog.Error("gtfs: feed build failed", "err", err)
		http.Error(w, "feed unavailable", http.StatusInternalServerError)
		return
	}
	data, err := proto.Marshal(feed)
	if err != nil {
		slog.Error("gtfs: marshal failed", "err", err)
		http.Error(w, "feed unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Write(data)
}

// splitLocationName parses "tripid@stopid" location names.
func splitLocationName(name string) (tripID, stopID string, ok bool) {
	parts := strings.SplitN(name, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
