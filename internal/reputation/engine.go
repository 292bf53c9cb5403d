// Package reputation implements the outcome-driven trust update for
// reporters. The engine only computes; the pipeline persists the result.
package reputation

import "github.com/denisplanner/backend/internal/database"

// K is the sensitivity of trust updates.
const K = 0.1

// Engine applies a self-anchored reinforcement rule over [0,1]: the expected
// outcome is the current score, so at the fixed points (score 1 with a good
// outcome, score 0 with a bad one) the score does not move, and deviation
// shrinks geometrically.
type Engine struct {
	k float64
}

// NewEngine returns an Engine with the default K factor.
func NewEngine() *Engine {
	return &Engine{k: K}
}

// NextScore returns the user's updated trust score for the given decision
// outcome, clamped to [0,1].
func (e *Engine) NextScore(user *database.User, accepted bool) float64 {
	expected := user.TrustScore
	actual := 0.0
	if accepted {
		actual = 1.0
	}
	next := user.TrustScore + e.k*(actual-expected)
	if next < 0 {
		return 0
	}
	if next > 1 {
		return 1
	}
	return next
}
