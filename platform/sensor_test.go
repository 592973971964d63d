package platform

import (
	"bytes"
	"encoding/json/jsontext"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/mqtt"
)

func marshal(t *testing.T, p interface {
	MarshalDiscoveryTo(e *jsontext.Encoder, prefix string) error
}) string {
	t.Helper()

	var b bytes.Buffer
	e := jsontext.NewEncoder(&b)
	require.NoError(t, e.WriteToken(jsontext.BeginObject))
	require.NoError(t, p.MarshalDiscoveryTo(e, "powergroup/home"))
	require.NoError(t, e.WriteToken(jsontext.EndObject))

	return b.String()
}

func TestSensor(t *testing.T) {
	type attrs struct {
		LastReset string `json:"last_reset"`
	}

	s := &Sensor[float64, attrs]{
		DeviceClass:               hass.DeviceClassEnergy,
		StateClass:                hass.StateClassTotal,
		UnitOfMeasurement:         hass.UnitKiloWattHour,
		SuggestedDisplayPrecision: 3,
		Attributes:                NewSensorAttributeValue[attrs]("kitchen/energy_today/attributes", nil),
		State:                     mqtt.NewValue("kitchen/energy_today", mqtt.Float64Marshaler(3)),
	}

	assert.Equal(t, "sensor", s.PlatformName())
	assert.JSONEq(t, `{
		"dev_cla": "energy",
		"stat_cla": "total",
		"unit_of_meas": "kWh",
		"sug_dsp_prc": 3,
		"json_attr_t": "powergroup/home/kitchen/energy_today/attributes",
		"stat_t": "powergroup/home/kitchen/energy_today"
	}`, marshal(t, s))

	t.Run("Requires State", func(t *testing.T) {
		var b bytes.Buffer
		err := (&Sensor[float64, any]{}).MarshalDiscoveryTo(jsontext.NewEncoder(&b), "")
		require.Error(t, err)
	})
}

func TestBinarySensor(t *testing.T) {
	s := NewBinarySensor[any](mqtt.NewValue("kitchen/standby", hass.PowerStateMarshaler), nil)
	s.ExpireMeasurementsAfter = 10 * time.Minute

	assert.Equal(t, "binary_sensor", s.PlatformName())
	assert.JSONEq(t, `{
		"exp_aft": 600,
		"stat_t": "powergroup/home/kitchen/standby"
	}`, marshal(t, s))
}
