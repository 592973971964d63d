package powergroup

import (
	"context"
	"encoding/json/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/mqtt"
	"github.com/mephdrac/powergroup/mqtt/mqtttest"
	"github.com/mephdrac/powergroup/platform"
)

func TestDeviceID(t *testing.T) {
	for _, tt := range []struct {
		name   string
		device Device
		want   string
	}{
		{name: "DiscoveryID wins", device: Device{DiscoveryID: "custom", Name: "Home"}, want: "custom"},
		{name: "Identifiers", device: Device{Identifiers: []string{"a", "b"}}, want: "a__b"},
		{name: "Sanitized", device: Device{Identifiers: []string{"power group/1"}, Model: "Power - Monitor"}, want: "power__group__1__Power__-__Monitor"},
		{name: "Skips empty", device: Device{Name: "Home", Manufacturer: "mephdrac"}, want: "Home__mephdrac"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.device.ID())
		})
	}
}

func TestDeviceConfigure(t *testing.T) {
	broker := mqtttest.New()

	availability := mqtt.NewValue("availability", hass.AvailabilityMarshaler)
	power := &Component[*platform.Sensor[float64, any]]{
		Platform: &platform.Sensor[float64, any]{
			DeviceClass:               hass.DeviceClassPower,
			StateClass:                hass.StateClassMeasurement,
			UnitOfMeasurement:         hass.UnitWatt,
			SuggestedDisplayPrecision: 2,
			State:                     mqtt.NewValue("kitchen/power", mqtt.Float64Marshaler(2)),
		},
		TopicPrefix:  "powergroup/home",
		Name:         "Kitchen Power",
		Icon:         "mdi:flash",
		Availability: availability,
		UniqueID:     "home_kitchen_power",
	}

	d := &Device{Name: "Home", Identifiers: []string{"powergroup_home"}, Manufacturer: Manufacturer, Model: Model}

	require.NoError(t, d.Configure(context.Background(), broker, "homeassistant", map[string]json.MarshalerTo{
		"kitchen_power": power,
		"old_peak":      RemoveComponent{Platform: "sensor"},
	}))

	payload, ok := broker.Retained("homeassistant/device/powergroup_home/config")
	require.True(t, ok, "discovery payload should be retained")

	var got map[string]any
	require.NoError(t, json.Unmarshal(payload, &got))

	assert.Equal(t, map[string]any{
		"name": "Home",
		"ids":  []any{"powergroup_home"},
		"mf":   "mephdrac",
		"mdl":  "Power - Monitor",
	}, got["dev"])
	assert.Equal(t, "power_group_monitor", got["o"].(map[string]any)["name"])

	cmps := got["cmps"].(map[string]any)
	assert.Equal(t, map[string]any{"p": "sensor"}, cmps["old_peak"])
	assert.Equal(t, map[string]any{
		"p":            "sensor",
		"name":         "Kitchen Power",
		"ic":           "mdi:flash",
		"avty_t":       "powergroup/home/availability",
		"uniq_id":      "home_kitchen_power",
		"dev_cla":      "power",
		"stat_cla":     "measurement",
		"sug_dsp_prc":  2.0,
		"stat_t":       "powergroup/home/kitchen/power",
		"unit_of_meas": "W",
	}, cmps["kitchen_power"])

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, d.Remove(context.Background(), broker, "homeassistant"))

		_, ok := broker.Retained("homeassistant/device/powergroup_home/config")
		assert.False(t, ok)
	})
}

func TestDeviceInvalid(t *testing.T) {
	err := (&Device{Name: "nameless"}).Configure(context.Background(), mqtttest.New(), "homeassistant", nil)
	require.ErrorIs(t, err, ErrInvalidDevice)
}

func TestComponentRequiresUniqueID(t *testing.T) {
	d := &Device{Identifiers: []string{"x"}}
	err := d.Configure(context.Background(), mqtttest.New(), "homeassistant", map[string]json.MarshalerTo{
		"standby": &Component[*platform.BinarySensor[any]]{
			Platform:     platform.NewBinarySensor[any](mqtt.NewValue("standby", hass.PowerStateMarshaler), nil),
			Availability: mqtt.NewValue("availability", hass.AvailabilityMarshaler),
		},
	})

	require.Error(t, err)
}
