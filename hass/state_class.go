package hass

// StateClass tells Home Assistant which long term statistics to keep for a sensor.
//
// See https://developers.home-assistant.io/docs/core/entity/sensor/#available-state-classes.
type StateClass string

const (
	// StateClassMeasurement is a value in the present, like the current power draw. Home Assistant keeps min, max and
	// mean statistics for it.
	StateClassMeasurement StateClass = "measurement"

	// StateClassTotal is an accumulated amount that may go up and down. A sensor with this class and a last_reset
	// attribute starts a new cycle whenever last_reset changes, which is how the daily energy sensors are modelled.
	StateClassTotal StateClass = "total"

	// StateClassTotalIncreasing is an accumulated amount that only grows. Any decrease is taken as a meter reset.
	StateClassTotalIncreasing StateClass = "total_increasing"
)
