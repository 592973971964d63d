package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/mephdrac/powergroup/config"
)

// Metric identifies one derived sensor of a group or of the fleet.
type Metric string

const (
	MetricPower   Metric = "power"
	MetricPeak    Metric = "peak"
	MetricStandby Metric = "standby"
	MetricAverage Metric = "average"
	MetricToday   Metric = "today"
	MetricTotal   Metric = "total"
)

// GroupMetrics are the sensors of every group, in publication order.
var GroupMetrics = []Metric{MetricPower, MetricPeak, MetricStandby, MetricAverage, MetricToday, MetricTotal}

// FleetMetrics are the sensors summed across every group.
var FleetMetrics = []Metric{MetricPower, MetricStandby, MetricToday, MetricTotal}

// SensorKey addresses a derived sensor. Fleet sensors have an empty Group.
type SensorKey struct {
	Group  string
	Metric Metric
}

func GroupKey(id string, m Metric) SensorKey {
	return SensorKey{Group: id, Metric: m}
}

func FleetKey(m Metric) SensorKey {
	return SensorKey{Metric: m}
}

func (k SensorKey) IsFleet() bool {
	return k.Group == ""
}

func (k SensorKey) String() string {
	if k.IsFleet() {
		return "fleet/" + string(k.Metric)
	}

	return k.Group + "/" + string(k.Metric)
}

func (k SensorKey) LogValue() slog.Value {
	return slog.StringValue(k.String())
}

// Publisher makes derived values visible outside the process. Calls are made from the monitor's event loop one at a
// time.
type Publisher interface {
	// Configure announces the sensors of cfg and retracts those of groups no longer in it.
	Configure(ctx context.Context, cfg config.Config) error
	PublishValue(ctx context.Context, key SensorKey, v float64) error
	PublishState(ctx context.Context, key SensorKey, on bool) error
	// PublishLastReset records when a daily sensor was last reset to 0.
	PublishLastReset(ctx context.Context, key SensorKey, at time.Time) error
}
