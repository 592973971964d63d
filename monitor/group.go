package monitor

import (
	"log/slog"
	"time"

	"github.com/mephdrac/powergroup/config"
	"github.com/mephdrac/powergroup/energy"
	"github.com/mephdrac/powergroup/log"
	"github.com/mephdrac/powergroup/persistence"
	"github.com/mephdrac/powergroup/schedule"
	"github.com/mephdrac/powergroup/state"
)

// group holds the derived state of one configured group. It is only touched from the event loop.
type group struct {
	cfg config.Group
	sub *state.Subscription

	power   energy.Aggregation
	peak    energy.PeakTracker
	standby *energy.StandbyClassifier
	mean    *energy.Mean
	today   *energy.Integrator
	total   *energy.Integrator

	// lastAt is the time of the newest change applied.
	lastAt  time.Time
	stopped bool

	log *slog.Logger
}

// newGroup builds the state of cfg. Energy in from is carried over; its daily value only if it was recorded after the
// last local midnight.
func (m *Monitor) newGroup(cfg config.Group, now time.Time, from *persistence.Accumulated) *group {
	l := m.log.With(log.Group(cfg.ID))

	threshold, err := cfg.StandbyThreshold()
	if err != nil {
		l.With(log.Error(err)).Warn("Invalid standby threshold, using 0")
	}

	g := &group{
		cfg:     cfg,
		standby: energy.NewStandbyClassifier(threshold),
		mean:    energy.NewMean(m.opts.MeanWindow),

		log: l,
	}

	lastReset := schedule.StartOfDay(now, m.loc)
	var today, total float64
	if from != nil {
		total = from.Total
		if from.LastReset.Before(lastReset) {
			l.With(slog.Time("last_reset", from.LastReset)).Info("Discarding energy today recorded on a previous day")
		} else {
			today, lastReset = from.Today, from.LastReset
		}
	}

	g.today = energy.NewIntegrator(energy.IntegratorConfig{
		Variant:        energy.Daily,
		MaxSubInterval: m.opts.MaxSubInterval,
		OnStall:        m.stalled(g, energy.Daily),
	}, lastReset)
	g.today.SetAccumulated(today)

	g.total = energy.NewIntegrator(energy.IntegratorConfig{
		Variant:        energy.Total,
		MaxSubInterval: m.opts.MaxSubInterval,
		OnStall:        m.stalled(g, energy.Total),
	}, lastReset)
	g.total.SetAccumulated(total)

	return g
}

func (m *Monitor) stalled(g *group, v energy.Variant) func(last, next energy.Sample) {
	return func(last, next energy.Sample) {
		g.log.With(
			slog.Any("variant", v),
			slog.Any("last", last),
			slog.Any("next", next),
			slog.Duration("max_sub_interval", m.opts.MaxSubInterval),
		).Debug("Power signal stalled, restarting integration")
		m.opts.Metrics.Stall(g.cfg.ID, v.String())
	}
}

func (g *group) hasMembers() bool {
	return len(g.cfg.Entities) > 0
}

// stop cancels the member subscription. Changes already queued for g are dropped when they reach the event loop.
func (g *group) stop() {
	g.stopped = true
	if g.sub != nil {
		g.sub.Cancel()
	}
}

func (g *group) integrator(v energy.Variant) *energy.Integrator {
	if v == energy.Total {
		return g.total
	}

	return g.today
}

func (g *group) accumulated() persistence.Accumulated {
	return persistence.Accumulated{
		Today:     g.today.Value(),
		Total:     g.total.Value(),
		LastReset: g.today.LastReset(),
	}
}

// fleet sums every group with members, in configuration order.
type fleet struct {
	power   *energy.Sum
	today   *energy.Sum
	total   *energy.Sum
	standby *energy.StandbyClassifier

	lastReset time.Time
}

func newFleet(groups []*group, threshold float64, lastReset time.Time) *fleet {
	f := &fleet{
		power:   energy.NewSum(powerDigits),
		today:   energy.NewSum(energyDigits),
		total:   energy.NewSum(energyDigits),
		standby: energy.NewStandbyClassifier(threshold),

		lastReset: lastReset,
	}

	for _, g := range groups {
		if !g.hasMembers() {
			continue
		}

		if g.power.Available() {
			f.power.Set(g.cfg.ID, g.power.Watts)
		} else {
			f.power.Invalidate(g.cfg.ID)
		}

		f.today.Set(g.cfg.ID, g.today.Value())
		f.total.Set(g.cfg.ID, g.total.Value())
	}

	return f
}
