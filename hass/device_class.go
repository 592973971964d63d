package hass

// DeviceClass changes how Home Assistant displays a sensor and which units it accepts for it. See
// https://www.home-assistant.io/integrations/sensor/#device-class and
// https://www.home-assistant.io/integrations/binary_sensor/#device-class.
type DeviceClass string

const (
	DeviceClassNone DeviceClass = ""

	// DeviceClassPower is used by sensors reporting power in W or kW. For binary sensors, on means power is detected.
	DeviceClassPower DeviceClass = "power"

	// DeviceClassEnergy is used by sensors reporting energy in Wh or kWh.
	DeviceClassEnergy DeviceClass = "energy"
)
