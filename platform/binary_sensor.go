package platform

import (
	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/mqtt"
)

// BinarySensor is a Sensor with an on/off state. It shares the discovery fields of Sensor, of which the numeric ones
// stay empty.
//
// See https://www.home-assistant.io/integrations/binary_sensor.mqtt/.
type BinarySensor[TAttributes any] struct {
	Sensor[hass.PowerState, TAttributes]
}

func (s *BinarySensor[TAttributes]) PlatformName() string {
	return "binary_sensor"
}

// NewBinarySensor returns a BinarySensor publishing to state, with optional attributes.
func NewBinarySensor[TAttributes any](state *mqtt.Value[hass.PowerState], attrs *mqtt.Value[TAttributes]) *BinarySensor[TAttributes] {
	return &BinarySensor[TAttributes]{
		Sensor: Sensor[hass.PowerState, TAttributes]{State: state, Attributes: attrs},
	}
}
