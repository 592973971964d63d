package energy

import (
	"math"
)

// Reading is the latest state of one member entity. OK is false when the entity has no usable value (it is unknown,
// unavailable, missing or not a number).
type Reading struct {
	Value float64
	Unit  string
	OK    bool
}

// Unavailable is the Reading of an entity without a usable value.
var Unavailable = Reading{}

// NormalizeWatts converts r to watts. A missing unit and "W" are taken as watts, "kW" and "MW" are scaled. Readings in
// any other unit, non-finite values and readings that are not OK are rejected.
func NormalizeWatts(r Reading) (float64, bool) {
	if !r.OK || math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return 0, false
	}

	switch r.Unit {
	case "", "W":
		return r.Value, true
	case "kW":
		return r.Value * 1e3, true
	case "MW":
		return r.Value * 1e6, true
	default:
		return 0, false
	}
}
