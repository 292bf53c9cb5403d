package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportMessageRoundTrip(t *testing.T) {
	delay := 10
	msg := ReportMessage{
		UserName:     "alice",
		UserLocation: Coordinates{Latitude: 50.06143, Longitude: 19.93658},
		LocationName: "L1",
		LocationPos:  Coordinates{Latitude: 50.06143, Longitude: 19.93658},
		ReportType:   TypeDelay,
		DelayMinutes: &delay,
	}

	raw, err := json.Marshal(&msg)
	require.NoError(t, err)

	// Wire format: coordinate objects and the uppercase enumerator name.
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "alice", wire["user_name"])
	assert.Equal(t, "DELAY", wire["report_type"])
	loc, ok := wire["user_location"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 50.06143, loc["latitude"], 1e-9)
	assert.InDelta(t, 19.93658, loc["longitude"], 1e-9)

	parsed, err := ParseReportMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, &msg, parsed)
}

func TestReportMessageMissingDelayAllowed(t *testing.T) {
	raw := []byte(`{
		"user_name": "bob",
		"user_location": {"latitude": 60, "longitude": 20},
		"location_name": "Varsovia",
		"location_pos": {"latitude": 60, "longitude": 20},
		"report_type": "ACCIDENT"
	}`)
	msg, err := ParseReportMessage(raw)
	require.NoError(t, err)
	assert.Nil(t, msg.DelayMinutes)
	assert.Equal(t, TypeAccident, msg.ReportType)
}

func TestParseReportMessageErrors(t *testing.T) {
	cases := map[string]string{
		"malformed json": `{"user_name": `,
		"unknown type": `{"user_name":"a","user_location":{"latitude":0,"longitude":0},
			"location_name":"x","location_pos":{"latitude":0,"longitude":0},"report_type":"FIRE"}`,
		"lowercase type": `{"user_name":"a","user_location":{"latitude":0,"longitude":0},
			"location_name":"x","location_pos":{"latitude":0,"longitude":0},"report_type":"delay"}`,
		"empty user": `{"user_name":"","user_location":{"latitude":0,"longitude":0},
			"location_name":"x","location_pos":{"latitude":0,"longitude":0},"report_type":"DELAY"}`,
		"latitude out of range": `{"user_name":"a","user_location":{"latitude":91,"longitude":0},
			"location_name":"x","location_pos":{"latitude":0,"longitude":0},"report_type":"DELAY"}`,
		"negative delay": `{"user_name":"a","user_location":{"latitude":0,"longitude":0},
			"location_name":"x","location_pos":{"latitude":0,"longitude":0},"report_type":"DELAY","delay_minutes":-5}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReportMessage([]byte(payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestReportTypeNames(t *testing.T) {
	assert.Equal(t, "Delay", TypeDelay.String())
	assert.Equal(t, "Solved", TypeSolved.String())
	assert.Equal(t, "MAINTENANCE", TypeMaintenance.Wire())
	assert.Len(t, AllReportTypes(), 5)

	parsed, err := ParseReportType("OTHER")
	require.NoError(t, err)
	assert.Equal(t, TypeOther, parsed)
}

func TestCoordinatesValidate(t *testing.T) {
	assert.NoError(t, Coordinates{Latitude: -90, Longitude: 180}.Validate())
	assert.ErrorIs(t, Coordinates{Latitude: -90.01, Longitude: 0}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Coordinates{Latitude: 0, Longitude: -180.5}.Validate(), ErrInvalidInput)
}
