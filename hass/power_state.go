package hass

import "github.com/mephdrac/powergroup/mqtt"

// PowerState is the payload of a binary sensor.
type PowerState string

const (
	PowerStateOn  PowerState = "ON"
	PowerStateOff PowerState = "OFF"
)

var PowerStateMarshaler mqtt.ValueMarshaler[PowerState] = func(v PowerState) ([]byte, error) {
	return []byte(v), nil
}

// PowerStateOf returns PowerStateOn for true and PowerStateOff for false.
func PowerStateOf(on bool) PowerState {
	if on {
		return PowerStateOn
	}

	return PowerStateOff
}
