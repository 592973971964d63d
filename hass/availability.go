package hass

import "github.com/mephdrac/powergroup/mqtt"

// Availability is the payload of an availability topic. Home Assistant shows every entity that uses the topic as
// unavailable while it holds Unavailable.
type Availability string

const (
	Available   Availability = "online"
	Unavailable Availability = "offline"
)

var (
	AvailabilityMarshaler mqtt.ValueMarshaler[Availability] = func(v Availability) ([]byte, error) {
		return []byte(v), nil
	}
	AvailabilityUnmarshaler mqtt.ValueUnmarshaler[Availability] = func(payload []byte) (Availability, error) {
		return Availability(payload), nil
	}
)
