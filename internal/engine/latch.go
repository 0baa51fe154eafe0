package engine

import (
	"relayengine/internal/models"
)

// resolveRelay returns the value to send for a relay action and whether anything is sent.
// on is false for the complementary (OFF edge) invocation. Requires e.mu.
//
// Latching outputs model push-to-toggle relays: only an asserting invocation
// (on and target_value true) toggles the stored state and sends it.
func (e *Engine) resolveRelay(a models.Action, on bool) (value bool, send bool) {
	if !a.Latching {
		if on {
			return a.TargetValue, true
		}
		return !a.TargetValue, true
	}

	if !on || !a.TargetValue {
		return false, false
	}
	key := models.OutputKeyFor(a)
	next := !e.latches[key]
	e.latches[key] = next
	return next, true
}
