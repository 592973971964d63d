package monitor

import (
	"log/slog"
	"time"

	"github.com/mephdrac/powergroup/energy"
	"github.com/mephdrac/powergroup/log"
)

// Publication failures are logged and counted. The next change publishes again.

func (m *Monitor) publishValue(key SensorKey, v float64) {
	if err := m.pub.PublishValue(m.ctx, key, v); err != nil {
		m.publishFailed(key, err)
	}
}

func (m *Monitor) publishState(key SensorKey, on bool) {
	if err := m.pub.PublishState(m.ctx, key, on); err != nil {
		m.publishFailed(key, err)
	}
}

func (m *Monitor) publishLastReset(key SensorKey, at time.Time) {
	if err := m.pub.PublishLastReset(m.ctx, key, at); err != nil {
		m.publishFailed(key, err)
	}
}

func (m *Monitor) publishFailed(key SensorKey, err error) {
	m.opts.Metrics.PublishError()
	m.log.With(slog.Any("sensor", key), log.Error(err)).Warn("Failed to publish")
}

// publishGroup publishes the values of g that are known without a power reading.
func (m *Monitor) publishGroup(g *group) {
	m.publishValue(GroupKey(g.cfg.ID, MetricPeak), energy.Round(g.peak.Value(), powerDigits))
	m.publishLastReset(GroupKey(g.cfg.ID, MetricToday), g.today.LastReset())
	m.publishEnergy(g)
}

// publishEnergy publishes the daily and total energy of g and of the fleet.
func (m *Monitor) publishEnergy(g *group) {
	id := g.cfg.ID
	today, total := g.today.Value(), g.total.Value()

	m.publishValue(GroupKey(id, MetricToday), energy.Round(today, energyDigits))
	m.publishValue(GroupKey(id, MetricTotal), energy.Round(total, energyDigits))
	m.opts.Metrics.Energy(id, energy.Daily.String(), today)
	m.opts.Metrics.Energy(id, energy.Total.String(), total)

	m.fleet.today.Set(id, today)
	m.fleet.total.Set(id, total)
	m.publishFleetEnergy()
}

func (m *Monitor) publishFleetEnergy() {
	if v, ok := m.fleet.today.Value(); ok {
		m.publishValue(FleetKey(MetricToday), v)
	}
	if v, ok := m.fleet.total.Value(); ok {
		m.publishValue(FleetKey(MetricTotal), v)
	}
}

// publishFleetPower publishes the fleet power and, when it changed or force is set, the fleet standby state.
func (m *Monitor) publishFleetPower(force bool) {
	v, ok := m.fleet.power.Value()
	if ok {
		m.publishValue(FleetKey(MetricPower), v)
	}

	changed := m.fleet.standby.Observe(v, ok)
	if on, known := m.fleet.standby.State(); known && (changed || force) {
		m.publishState(FleetKey(MetricStandby), on)
	}
}

func (m *Monitor) publishFleet(force bool) {
	if len(m.fleet.today.IDs()) == 0 {
		return
	}

	m.publishLastReset(FleetKey(MetricToday), m.fleet.lastReset)
	m.publishFleetEnergy()
	m.publishFleetPower(force)
}
