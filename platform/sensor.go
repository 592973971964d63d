package platform

import (
	"encoding/json/jsontext"
	"errors"
	"time"

	"github.com/mephdrac/powergroup/discovery"
	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/mqtt"
)

// Sensor is a read-only numeric or text entity whose state is a TValue published to State. Optional json attributes
// of type TAttributes are published to their own topic.
//
// See https://www.home-assistant.io/integrations/sensor.mqtt/.
type Sensor[TValue, TAttributes any] struct {
	DeviceClass       hass.DeviceClass
	StateClass        hass.StateClass
	UnitOfMeasurement hass.Unit

	// SuggestedDisplayPrecision is the number of decimals the frontend shows.
	SuggestedDisplayPrecision uint

	// ExpireMeasurementsAfter makes the state unavailable if it is not refreshed in time. It is sent in whole seconds,
	// zero never expires.
	ExpireMeasurementsAfter time.Duration

	// Attributes must encode to a json object, see NewSensorAttributeValue.
	Attributes *mqtt.Value[TAttributes]

	State *mqtt.Value[TValue] `powergroup:"required"`
}

func (s *Sensor[TValue, TAttributes]) PlatformName() string {
	return "sensor"
}

func (s *Sensor[TValue, TAttributes]) MarshalDiscoveryTo(e *jsontext.Encoder, prefix string) error {
	return errors.Join(
		discovery.MarshalRequiredValueTopic("state", e, discovery.FieldStateTopic, s.State, prefix),
		discovery.MaybeMarshalValueTopic(e, discovery.FieldAttributesTopic, s.Attributes, prefix),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldDeviceClass, s.DeviceClass),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldStateClass, s.StateClass),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldUnitOfMeasurement, s.UnitOfMeasurement),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldSuggestedDisplayPrecision, s.SuggestedDisplayPrecision),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldExpireMeasurementsAfter, s.ExpireMeasurementsAfter),
	)
}

// NewSensorAttributeValue returns a retained attribute Value for topic. A nil marshaler encodes attributes as json.
func NewSensorAttributeValue[TAttributes any](topic string, marshaler mqtt.ValueMarshaler[TAttributes]) *mqtt.Value[TAttributes] {
	if marshaler == nil {
		marshaler = mqtt.JsonValueMarshaler[TAttributes]()
	}

	return mqtt.NewValueWithOptions(topic, marshaler, mqtt.WriteOptions{Retain: true})
}
