// Package decider implements the trust gate for inbound reports: instant
// rejection on distance, time or reputation thresholds, then a logistic
// combination of the three signals.
package decider

import (
	"fmt"
	"math"

	"github.com/denisplanner/backend/internal/core"
	"github.com/denisplanner/backend/internal/database"
)

// Thresholds are the gate constants. Configurable but fixed at boot.
type Thresholds struct {
	Distance float64 // km
	Time     float64 // minutes
	Trust    float64
	Decide   float64
}

// DefaultThresholds returns the production gate constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Distance: 10.0,
		Time:     360, // 6 hours
		Trust:    0.7,
		Decide:   0.5,
	}
}

// Prior smoothing constants for the adjusted reputation.
const (
	prior        = 0.9
	priorWeight  = 1.0
	lowThreshold = 0.5
)

const earthRadiusKm = 6371

// Decider scores report messages. Pure and deterministic: same message and
// user record always produce the same decision.
type Decider struct {
	thresholds Thresholds
}

// New creates a Decider with the given thresholds.
func New(t Thresholds) *Decider {
	return &Decider{thresholds: t}
}

// Decide returns whether to trust the report and the logistic probability
// behind the decision. Instant rejects return (false, 0).
func (d *Decider) Decide(msg *core.ReportMessage, user *database.User) (bool, float64, error) {
	if user == nil {
		return false, 0, fmt.Errorf("%w: %q", core.ErrUnknownUser, msg.UserName)
	}
	if err := msg.UserLocation.Validate(); err != nil {
		return false, 0, err
	}
	if err := msg.LocationPos.Validate(); err != nil {
		return false, 0, err
	}

	distance := Haversine(msg.UserLocation, msg.LocationPos)
	timeDiff := 0.0
	if msg.DelayMinutes != nil {
		timeDiff = float64(*msg.DelayMinutes)
	}
	trust := adjustedTrust(user)

	if distance > d.thresholds.Distance || timeDiff > d.thresholds.Time || trust < d.thresholds.Trust {
		return false, 0, nil
	}

	score := 2*trust - distance/d.thresholds.Distance - timeDiff/d.thresholds.Time
	prob := sigmoid(score)
	return prob >= d.thresholds.Decide, prob, nil
}

// adjustedTrust smooths a high-trust user's score toward the prior when the
// sample is small. The asymmetry is intentional: low-trust users keep their
// raw score and are not rehabilitated by the prior.
func adjustedTrust(user *database.User) float64 {
	t := user.TrustScore
	if t <= lowThreshold {
		return t
	}
	n := float64(user.ReportsMade)
	return (priorWeight*prior + n*t) / (priorWeight + n)
}

// Haversine returns the great-circle distance in km between two coordinates.
func Haversine(a, b core.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lon1 := a.Longitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	lon2 := b.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
