package hass

import (
	"fmt"
	"strings"
)

// Special values Home Assistant uses in place of a real entity state.
const (
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// EntityID is a Home Assistant entity identifier in the form "<domain>.<object_id>", e.g. "sensor.fridge_power".
type EntityID string

// ParseEntityID validates that s has the "<domain>.<object_id>" shape.
func ParseEntityID(s string) (EntityID, error) {
	domain, object, ok := strings.Cut(s, ".")
	if !ok || domain == "" || object == "" || strings.Contains(object, ".") {
		return "", fmt.Errorf("invalid entity id %q", s)
	}

	return EntityID(s), nil
}

// Domain returns the integration domain of the entity, e.g. "sensor".
func (e EntityID) Domain() string {
	d, _, _ := strings.Cut(string(e), ".")
	return d
}

// ObjectID returns the part of the entity id after the domain.
func (e EntityID) ObjectID() string {
	_, o, _ := strings.Cut(string(e), ".")
	return o
}

// HasValue reports whether state is an actual value rather than one of the placeholders Home Assistant uses for
// entities without a current value.
func HasValue(state string) bool {
	switch strings.TrimSpace(state) {
	case "", StateUnknown, StateUnavailable, "None":
		return false
	default:
		return true
	}
}
