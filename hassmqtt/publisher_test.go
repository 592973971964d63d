package hassmqtt

import (
	"context"
	"encoding/json/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mephdrac/powergroup/config"
	"github.com/mephdrac/powergroup/monitor"
	"github.com/mephdrac/powergroup/mqtt/mqtttest"
)

const configTopic = "homeassistant/device/home/config"

func home() config.Config {
	return config.Config{
		Name: "Home",
		Groups: []config.Group{
			{ID: "g1", Name: "Kitchen", Standby: "10", Entities: []string{"sensor.fridge", "switch.kettle"}},
			{ID: "g2", Name: "Office", Standby: "5", Entities: []string{"sensor.desk"}},
			{ID: "g3", Name: "Empty"},
		},
	}
}

func components(t *testing.T, b *mqtttest.Broker) map[string]map[string]any {
	t.Helper()

	payload, ok := b.Retained(configTopic)
	require.True(t, ok, "discovery payload should be retained")

	var doc struct {
		Components map[string]map[string]any `json:"cmps"`
	}
	require.NoError(t, json.Unmarshal(payload, &doc))

	return doc.Components
}

func TestConfigure(t *testing.T) {
	b := mqtttest.New()
	sut := New(b, "Home", Options{})
	require.NoError(t, sut.Configure(context.Background(), home()))

	cmps := components(t, b)
	assert.Len(t, cmps, 2*len(monitor.GroupMetrics)+len(monitor.FleetMetrics), "groups without members get no sensors")

	assert.Equal(t, map[string]any{
		"p":            "sensor",
		"name":         "Kitchen Power",
		"ic":           "mdi:flash",
		"avty_t":       "powergroup/home/availability",
		"def_ent_id":   "sensor.home_kitchen_power",
		"uniq_id":      "home_g1_power",
		"dev_cla":      "power",
		"sug_dsp_prc":  float64(2),
		"stat_cla":     "measurement",
		"stat_t":       "powergroup/home/g1/power",
		"unit_of_meas": "W",
	}, cmps["home_g1_power"])

	today := cmps["home_g2_today"]
	assert.Equal(t, "Office Energy today", today["name"])
	assert.Equal(t, "mdi:counter", today["ic"])
	assert.Equal(t, "total", today["stat_cla"])
	assert.Equal(t, "kWh", today["unit_of_meas"])
	assert.Equal(t, "powergroup/home/g2/today/attributes", today["json_attr_t"])
	assert.Equal(t, float64(3), today["sug_dsp_prc"])

	standby := cmps["home_g1_standby"]
	assert.Equal(t, "binary_sensor", standby["p"])
	assert.Equal(t, "mdi:power-sleep", standby["ic"])
	assert.Equal(t, "binary_sensor.home_kitchen_standby", standby["def_ent_id"])

	fleet := cmps["home_fleet_total"]
	assert.Equal(t, "All groups Energy total", fleet["name"])
	assert.Equal(t, "total_increasing", fleet["stat_cla"])
	assert.Equal(t, "powergroup/home/fleet/total", fleet["stat_t"])

	availability, ok := b.Retained("powergroup/home/availability")
	require.True(t, ok)
	assert.Equal(t, "online", string(availability))
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	b := mqtttest.New()
	sut := New(b, "Home", Options{TopicPrefix: "pg"})
	require.NoError(t, sut.Configure(ctx, home()))

	require.NoError(t, sut.PublishValue(ctx, monitor.GroupKey("g1", monitor.MetricPower), 2085.456))
	require.NoError(t, sut.PublishValue(ctx, monitor.FleetKey(monitor.MetricToday), 1.5))
	require.NoError(t, sut.PublishState(ctx, monitor.GroupKey("g2", monitor.MetricStandby), true))

	midnight := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, sut.PublishLastReset(ctx, monitor.GroupKey("g1", monitor.MetricToday), midnight))

	for topic, want := range map[string]string{
		"pg/home/g1/power":            "2085.46",
		"pg/home/fleet/today":         "1.500",
		"pg/home/g2/standby":          "ON",
		"pg/home/g1/today/attributes": `{"last_reset":"2026-03-02T00:00:00Z"}`,
	} {
		got, ok := b.Retained(topic)
		require.True(t, ok, topic)
		assert.Equal(t, want, string(got), topic)
	}

	t.Run("Errors", func(t *testing.T) {
		assert.ErrorIs(t, sut.PublishValue(ctx, monitor.GroupKey("g3", monitor.MetricPower), 1), ErrUnknownSensor)
		assert.Error(t, sut.PublishValue(ctx, monitor.GroupKey("g1", monitor.MetricStandby), 1))
		assert.Error(t, sut.PublishState(ctx, monitor.GroupKey("g1", monitor.MetricPower), true))
		assert.Error(t, sut.PublishLastReset(ctx, monitor.GroupKey("g1", monitor.MetricTotal), midnight))
	})
}

func TestConfigureRemovesGroups(t *testing.T) {
	ctx := context.Background()
	b := mqtttest.New()
	sut := New(b, "Home", Options{})

	cfg := home()
	require.NoError(t, sut.Configure(ctx, cfg))
	require.NoError(t, sut.PublishValue(ctx, monitor.GroupKey("g2", monitor.MetricTotal), 12))

	cfg.Groups = cfg.Groups[:1]
	require.NoError(t, sut.Configure(ctx, cfg))

	cmps := components(t, b)
	assert.Equal(t, map[string]any{"p": "sensor"}, cmps["home_g2_total"])
	assert.Equal(t, map[string]any{"p": "binary_sensor"}, cmps["home_g2_standby"])
	assert.Contains(t, cmps["home_g1_total"], "stat_t")

	_, ok := b.Retained("powergroup/home/g2/total")
	assert.False(t, ok, "retained state of removed sensors is cleared")
	assert.ErrorIs(t, sut.PublishValue(ctx, monitor.GroupKey("g2", monitor.MetricTotal), 1), ErrUnknownSensor)

	require.NoError(t, sut.Configure(ctx, cfg))
	assert.NotContains(t, components(t, b), "home_g2_total", "removals are only sent once")
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	b := mqtttest.New()
	sut := New(b, "Home", Options{})
	require.NoError(t, sut.Configure(ctx, home()))
	require.NoError(t, sut.PublishValue(ctx, monitor.GroupKey("g1", monitor.MetricPower), 5))

	require.NoError(t, sut.Remove(ctx))

	for _, topic := range []string{configTopic, "powergroup/home/g1/power", sut.AvailabilityTopic()} {
		_, ok := b.Retained(topic)
		assert.False(t, ok, topic)
	}
}

func TestUniqueID(t *testing.T) {
	sut := New(mqtttest.New(), "My Home!", Options{})

	assert.Equal(t, "my_home_g1_peak", sut.UniqueID(monitor.GroupKey("g1", monitor.MetricPeak)))
	assert.Equal(t, "my_home_fleet_power", sut.UniqueID(monitor.FleetKey(monitor.MetricPower)))
	assert.Equal(t, "powergroup/my_home/g1/peak", sut.StateTopic(monitor.GroupKey("g1", monitor.MetricPeak)))
	assert.Equal(t, sut.AvailabilityTopic(), AvailabilityTopic("", "My Home!"))
}
