package hass

// Unit is a unit of measurement as Home Assistant spells it.
type Unit string

// Units of measurement used by Home Assistant for power and energy sensors.
const (
	UnitWatt         Unit = "W"
	UnitKiloWatt     Unit = "kW"
	UnitMegaWatt     Unit = "MW"
	UnitWattHour     Unit = "Wh"
	UnitKiloWattHour Unit = "kWh"
	UnitMegaWattHour Unit = "MWh"
)
