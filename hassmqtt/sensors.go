package hassmqtt

import (
	"strings"

	"github.com/mephdrac/powergroup"
	"github.com/mephdrac/powergroup/config"
	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/monitor"
	"github.com/mephdrac/powergroup/mqtt"
	"github.com/mephdrac/powergroup/platform"
)

// fleetName replaces the group name in the names of fleet sensors.
const fleetName = "All groups"

type descriptor struct {
	name       string
	icon       string
	binary     bool
	class      hass.DeviceClass
	stateClass hass.StateClass
	unit       hass.Unit
	digits     uint
	lastReset  bool
}

var descriptors = map[monitor.Metric]descriptor{
	monitor.MetricPower: {
		name:       "Power",
		icon:       "mdi:flash",
		class:      hass.DeviceClassPower,
		stateClass: hass.StateClassMeasurement,
		unit:       hass.UnitWatt,
		digits:     2,
	},
	monitor.MetricPeak: {
		name:       "Peak power",
		icon:       "mdi:flash-alert",
		class:      hass.DeviceClassPower,
		stateClass: hass.StateClassMeasurement,
		unit:       hass.UnitWatt,
		digits:     2,
	},
	monitor.MetricStandby: {
		name:   "Standby",
		icon:   "mdi:power-sleep",
		binary: true,
	},
	monitor.MetricAverage: {
		name:       "Average power",
		icon:       "mdi:flash",
		class:      hass.DeviceClassPower,
		stateClass: hass.StateClassMeasurement,
		unit:       hass.UnitWatt,
		digits:     2,
	},
	monitor.MetricToday: {
		name:       "Energy today",
		icon:       "mdi:counter",
		class:      hass.DeviceClassEnergy,
		stateClass: hass.StateClassTotal,
		unit:       hass.UnitKiloWattHour,
		digits:     3,
		lastReset:  true,
	},
	monitor.MetricTotal: {
		name:       "Energy total",
		icon:       "mdi:counter",
		class:      hass.DeviceClassEnergy,
		stateClass: hass.StateClassTotalIncreasing,
		unit:       hass.UnitKiloWattHour,
		digits:     3,
	},
}

// UniqueID returns the unique id of the sensor for key.
func (p *Publisher) UniqueID(key monitor.SensorKey) string {
	group := key.Group
	if key.IsFleet() {
		group = fleetTopic
	}

	return strings.Join([]string{p.entryID, group, string(key.Metric)}, "_")
}

// StateTopic returns the fully qualified state topic of the sensor for key.
func (p *Publisher) StateTopic(key monitor.SensorKey) string {
	return mqtt.JoinTopic(p.opts.TopicPrefix, p.topic(key))
}

func (p *Publisher) topic(key monitor.SensorKey) string {
	group := key.Group
	if key.IsFleet() {
		group = fleetTopic
	}

	return mqtt.JoinTopic(p.entryID, group, string(key.Metric))
}

func (p *Publisher) sensorFor(key monitor.SensorKey, groupName string) *sensor {
	d := descriptors[key.Metric]
	if key.IsFleet() {
		groupName = fleetName
	}

	s := &sensor{uniqueID: p.UniqueID(key)}
	base := powergroup.Component[powergroup.Platform]{
		TopicPrefix:     p.opts.TopicPrefix,
		Name:            groupName + " " + d.name,
		Icon:            d.icon,
		Availability:    p.availability,
		DefaultEntityID: p.defaultEntityID(d, groupName),
		UniqueID:        s.uniqueID,
	}

	if d.binary {
		s.state = mqtt.NewValueWithOptions(p.topic(key), hass.PowerStateMarshaler, mqtt.WriteOptions{Retain: true})

		bs := platform.NewBinarySensor[noAttributes](s.state, nil)
		bs.ExpireMeasurementsAfter = p.opts.ExpireAfter
		base.Platform = bs
		s.platform = bs.PlatformName()
		s.component = &base
		return s
	}

	s.value = mqtt.NewValueWithOptions(p.topic(key), mqtt.Float64Marshaler(int(d.digits)), mqtt.WriteOptions{Retain: true})
	if d.lastReset {
		s.attrs = platform.NewSensorAttributeValue[EnergyAttributes](mqtt.JoinTopic(p.topic(key), attributesTopic), nil)
	}

	sn := &platform.Sensor[float64, EnergyAttributes]{
		DeviceClass:               d.class,
		ExpireMeasurementsAfter:   p.opts.ExpireAfter,
		Attributes:                s.attrs,
		SuggestedDisplayPrecision: d.digits,
		StateClass:                d.stateClass,
		State:                     s.value,
		UnitOfMeasurement:         d.unit,
	}
	base.Platform = sn
	s.platform = sn.PlatformName()
	s.component = &base

	return s
}

func (p *Publisher) defaultEntityID(d descriptor, groupName string) string {
	domain := "sensor"
	if d.binary {
		domain = "binary_sensor"
	}

	return domain + "." + strings.Join([]string{p.entryID, config.Slug(groupName), config.Slug(d.name)}, "_")
}
