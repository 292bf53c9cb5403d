package reputation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/denisplanner/backend/internal/database"
)

func TestNextScoreMovesTowardOutcome(t *testing.T) {
	e := NewEngine()

	alice := &database.User{TrustScore: 0.9}
	assert.InDelta(t, 0.91, e.NextScore(alice, true), 1e-9)

	mallory := &database.User{TrustScore: 0.3}
	assert.InDelta(t, 0.27, e.NextScore(mallory, false), 1e-9)
}

// At the fixed points the score does not move.
func TestNextScoreFixedPoints(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, 1.0, e.NextScore(&database.User{TrustScore: 1.0}, true))
	assert.Equal(t, 0.0, e.NextScore(&database.User{TrustScore: 0.0}, false))
}

func TestNextScoreStaysInBounds(t *testing.T) {
	e := NewEngine()
	rng := rand.New(rand.NewSource(42))

	u := &database.User{TrustScore: rng.Float64()}
	for i := 0; i < 1000; i++ {
		u.TrustScore = e.NextScore(u, rng.Intn(2) == 0)
		assert.GreaterOrEqual(t, u.TrustScore, 0.0)
		assert.LessOrEqual(t, u.TrustScore, 1.0)
	}
}

// Deviation from a constant outcome shrinks geometrically.
func TestNextScoreConverges(t *testing.T) {
	e := NewEngine()
	u := &database.User{TrustScore: 0.2}
	for i := 0; i < 200; i++ {
		u.TrustScore = e.NextScore(u, true)
	}
	assert.InDelta(t, 1.0, u.TrustScore, 1e-6)
}
