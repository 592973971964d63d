// Package monitor runs the power groups of one configuration. It turns member entity changes into aggregated power,
// peak, standby, average and energy values per group and across the fleet, and hands them to a Publisher.
//
// Everything that touches group state runs on a single event loop started with Monitor.Run, so changes are applied in
// arrival order and no group is ever updated concurrently.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mephdrac/powergroup/clock"
	"github.com/mephdrac/powergroup/config"
	"github.com/mephdrac/powergroup/energy"
	"github.com/mephdrac/powergroup/log"
	"github.com/mephdrac/powergroup/metrics"
	"github.com/mephdrac/powergroup/persistence"
	"github.com/mephdrac/powergroup/schedule"
	"github.com/mephdrac/powergroup/state"
)

const (
	powerDigits  = 2
	energyDigits = 3

	eventBuffer = 256
	// maxPending bounds the unapplied changes kept per group. Beyond it the newest change replaces the last one.
	maxPending = 256
)

var (
	ErrClosed  = errors.New("monitor closed")
	ErrRunning = errors.New("monitor already running")
)

// Options tune a Monitor. The zero value is usable.
type Options struct {
	// Clock defaults to clock.Real.
	Clock clock.Clock
	// Location is used for the daily reset and defaults to time.Local.
	Location *time.Location

	// MaxSubInterval is passed to every energy.Integrator.
	MaxSubInterval time.Duration
	// MeanWindow is the window of the average power sensor.
	MeanWindow time.Duration

	// Persistence, if set, receives a snapshot every FlushInterval, at the daily reset, after a manual energy
	// overwrite and on shutdown.
	Persistence   *persistence.Store
	FlushInterval time.Duration

	Metrics *metrics.Metrics
}

// Monitor owns the power groups of one configuration.
type Monitor struct {
	store *state.Store
	pub   Publisher
	opts  Options
	clock clock.Clock
	loc   *time.Location

	events  chan func()
	wake    chan struct{}
	quit    chan struct{}
	stopped chan struct{}
	running atomic.Bool
	once    sync.Once

	// Member changes not yet applied, in arrival order per group. Written by store callbacks.
	changedMu sync.Mutex
	changed   map[*group][]change

	// Owned by the event loop.
	ctx      context.Context
	cfg      config.Config
	applied  bool
	closed   bool
	groups   map[string]*group
	order    []string
	restored map[string]persistence.Accumulated
	fleet    *fleet
	reset    *schedule.Job
	flush    clock.Timer

	log *slog.Logger
}

// New constructs a Monitor reading member states from store. It does nothing until Run is called and a configuration
// is applied.
func New(store *state.Store, pub Publisher, opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxSubInterval <= 0 {
		opts.MaxSubInterval = energy.DefaultMaxSubInterval
	}

	return &Monitor{
		store: store,
		pub:   pub,
		opts:  opts,
		clock: opts.Clock,
		loc:   opts.Location,

		events:  make(chan func(), eventBuffer),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),

		changed: map[*group][]change{},
		groups:  map[string]*group{},
		fleet:   newFleet(nil, 0, time.Time{}),

		log: log.ForComponent("monitor"),
	}
}

// Restore seeds the energy of groups from a snapshot. It must be called before the first Apply; entries are consumed
// by the groups that Apply creates and the rest are dropped.
func (m *Monitor) Restore(s *persistence.State) {
	if s == nil {
		return
	}

	m.restored = make(map[string]persistence.Accumulated, len(s.Accumulators))
	for id, a := range s.Accumulators {
		m.restored[id] = a
	}
}

// Run processes events until ctx is done or Close is called. On the way out it cancels every subscription, stops the
// daily reset and saves a final snapshot. A Monitor can only be run once.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(m.stopped)

	m.ctx = ctx
	m.reset = schedule.Daily(m.clock, schedule.Midnight, m.loc, func(at time.Time) {
		_ = m.enqueue(context.Background(), func() { m.dailyReset(at) })
	})
	m.armFlush()

	m.log.Debug("Monitor running")
	for {
		select {
		case <-m.quit:
			m.shutdown()
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case <-m.quit:
			m.shutdown()
			return nil
		case <-m.wake:
			m.applyChanged()
		case fn := <-m.events:
			// Changes reported before fn was queued are applied first.
			m.applyChanged()
			fn()
		}
	}
}

// Close stops the event loop and waits for it to finish. Nothing is delivered to the Publisher once Close returns. It
// is safe to call more than once but must not be called from a Publisher.
func (m *Monitor) Close() {
	m.once.Do(func() { close(m.quit) })

	if m.running.Load() {
		<-m.stopped
	}
}

// change is the power of a group right after one of its members changed.
type change struct {
	at    time.Time
	power energy.Aggregation
}

// markChanged records c for g and wakes the event loop. It never blocks, so store callbacks running on the mqtt
// router return immediately even while the loop is busy publishing.
func (m *Monitor) markChanged(g *group, c change) {
	m.changedMu.Lock()
	pending := m.changed[g]
	if len(pending) >= maxPending {
		pending[len(pending)-1] = c
	} else {
		m.changed[g] = append(pending, c)
	}
	m.changedMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Monitor) applyChanged() {
	m.changedMu.Lock()
	changed := m.changed
	if len(changed) == 0 {
		m.changedMu.Unlock()
		return
	}
	m.changed = map[*group][]change{}
	m.changedMu.Unlock()

	for _, g := range m.groupsInOrder() {
		for _, c := range changed[g] {
			m.onChange(g, c.at, c.power)
		}
	}
}

func (m *Monitor) enqueue(ctx context.Context, fn func()) error {
	select {
	case <-m.quit:
		return ErrClosed
	case <-m.stopped:
		return ErrClosed
	default:
	}

	select {
	case m.events <- fn:
		return nil
	case <-m.quit:
		return ErrClosed
	case <-m.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn on the event loop and waits for it to return.
func (m *Monitor) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := m.enqueue(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-m.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) shutdown() {
	if m.closed {
		return
	}

	m.log.Debug("Monitor shutting down")
	if m.reset != nil {
		m.reset.Stop()
	}
	if m.flush != nil {
		m.flush.Stop()
	}

	for _, g := range m.groups {
		g.stop()
	}

	m.save()
	m.closed = true
}

func (m *Monitor) armFlush() {
	if m.opts.Persistence == nil || m.opts.FlushInterval <= 0 {
		return
	}

	m.flush = m.clock.AfterFunc(m.opts.FlushInterval, func() {
		_ = m.enqueue(context.Background(), func() {
			if m.closed {
				return
			}

			m.save()
			m.armFlush()
		})
	})
}

func (m *Monitor) save() {
	if m.opts.Persistence == nil || !m.applied {
		return
	}

	if err := m.opts.Persistence.Save(m.snapshot()); err != nil {
		m.log.With(log.Error(err), slog.String("path", m.opts.Persistence.Path())).Error("Failed to save energy")
	}
}

// Apply validates cfg and reconciles the running groups with it. Added groups are created, deleted groups are torn
// down and edited groups are rebuilt with their energy carried over. Unchanged groups keep running untouched.
func (m *Monitor) Apply(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var err error
	if doErr := m.do(ctx, func() { err = m.apply(cfg.Clone()) }); doErr != nil {
		return doErr
	}

	return err
}

func (m *Monitor) apply(cfg config.Config) error {
	if m.closed {
		return ErrClosed
	}

	now := m.clock.Now()
	next := make(map[string]*group, len(cfg.Groups))
	order := make([]string, 0, len(cfg.Groups))
	var started []*group

	for _, gc := range cfg.Groups {
		order = append(order, gc.ID)

		old, exists := m.groups[gc.ID]
		switch {
		case exists && old.cfg.Equal(gc):
			next[gc.ID] = old
			continue
		case exists:
			carried := old.accumulated()
			old.stop()
			next[gc.ID] = m.newGroup(gc, now, &carried)
			m.log.With(log.Group(gc.ID), slog.String("name", gc.Name)).Info("Rebuilding edited group")
		default:
			var from *persistence.Accumulated
			if r, ok := m.restored[gc.ID]; ok {
				from = &r
			}
			next[gc.ID] = m.newGroup(gc, now, from)
			m.log.With(log.Group(gc.ID), slog.String("name", gc.Name)).Info("Adding group")
		}

		started = append(started, next[gc.ID])
	}

	for id, old := range m.groups {
		if _, keep := next[id]; keep {
			continue
		}

		old.stop()
		m.opts.Metrics.Forget(id)
		m.log.With(log.Group(id), slog.String("name", old.cfg.Name)).Info("Removing group")
	}

	m.cfg = cfg
	m.groups = next
	m.order = order
	m.restored = nil
	m.applied = true

	var err error
	if cerr := m.pub.Configure(m.ctx, cfg); cerr != nil {
		m.opts.Metrics.PublishError()
		err = fmt.Errorf("configure sensors: %w", cerr)
	}

	m.fleet = newFleet(m.groupsInOrder(), cfg.TotalStandbyThreshold(), m.fleet.lastReset)
	if m.fleet.lastReset.IsZero() {
		m.fleet.lastReset = schedule.StartOfDay(now, m.loc)
	}
	for _, g := range started {
		m.start(g)
	}
	m.publishFleet(false)

	return err
}

func (m *Monitor) groupsInOrder() []*group {
	groups := make([]*group, 0, len(m.order))
	for _, id := range m.order {
		groups = append(groups, m.groups[id])
	}

	return groups
}

// start subscribes g to its members and publishes its initial values. A group without members logs a warning and
// leaves its sensors uninitialized.
func (m *Monitor) start(g *group) {
	if !g.hasMembers() {
		g.log.Warn("Group has no member entities, its sensors stay uninitialized")
		return
	}

	g.sub = m.store.Subscribe(g.cfg.Entities, func(_ string, s state.EntityState) {
		at := s.Updated
		if at.IsZero() {
			at = m.clock.Now()
		}

		m.markChanged(g, change{at: at, power: energy.Aggregate(g.cfg.Entities, m.store.Reading)})
	})

	m.publishGroup(g)
	m.onChange(g, m.clock.Now(), energy.Aggregate(g.cfg.Entities, m.store.Reading))
}

// onChange recomputes everything derived from the power of g.
func (m *Monitor) onChange(g *group, at time.Time, power energy.Aggregation) {
	if g.stopped || m.closed {
		return
	}

	// A change can carry an older time than one already applied, e.g. a new unit for a member that last changed
	// earlier than another member.
	if at.Before(g.lastAt) {
		at = g.lastAt
	}
	g.lastAt = at

	g.power = power
	m.opts.Metrics.Sample(g.cfg.ID, g.power.Watts, g.power.Skipped)
	g.log.With(slog.Any("power", g.power)).Debug("Power changed")

	if !g.power.Available() {
		m.fleet.power.Invalidate(g.cfg.ID)
		m.publishFleetPower(false)
		return
	}

	watts := g.power.Watts
	m.publishValue(GroupKey(g.cfg.ID, MetricPower), energy.Round(watts, powerDigits))

	if g.peak.Observe(watts) {
		m.publishValue(GroupKey(g.cfg.ID, MetricPeak), energy.Round(g.peak.Value(), powerDigits))
	}

	if g.standby.Observe(watts, true) {
		on, _ := g.standby.State()
		m.publishState(GroupKey(g.cfg.ID, MetricStandby), on)
	}

	sample := energy.Sample{Time: at, Watts: watts}
	g.mean.Add(sample)
	if avg, ok := g.mean.Value(at); ok {
		m.publishValue(GroupKey(g.cfg.ID, MetricAverage), energy.Round(avg, powerDigits))
	}

	g.today.OnSample(sample)
	g.total.OnSample(sample)
	m.publishEnergy(g)

	m.fleet.power.Set(g.cfg.ID, watts)
	m.publishFleetPower(false)
}

// dailyReset clears the peak and daily energy of every group.
func (m *Monitor) dailyReset(at time.Time) {
	if m.closed {
		return
	}

	m.log.With(slog.Time("at", at)).Info("Resetting daily values")
	for _, g := range m.groupsInOrder() {
		g.peak.Reset()
		g.today.OnDailyReset(at)

		if !g.hasMembers() {
			continue
		}

		m.publishValue(GroupKey(g.cfg.ID, MetricPeak), 0)
		m.publishLastReset(GroupKey(g.cfg.ID, MetricToday), at)
		m.publishEnergy(g)
	}

	m.fleet.lastReset = at
	if len(m.fleet.today.IDs()) > 0 {
		m.publishLastReset(FleetKey(MetricToday), at)
	}

	m.opts.Metrics.Reset()
	m.save()
}

// SetAccumulated overwrites the daily or total energy of a group, e.g. to carry over a value recorded elsewhere.
func (m *Monitor) SetAccumulated(ctx context.Context, groupID string, v energy.Variant, kWh float64) error {
	var err error
	if doErr := m.do(ctx, func() { err = m.setAccumulated(groupID, v, kWh) }); doErr != nil {
		return doErr
	}

	return err
}

func (m *Monitor) setAccumulated(groupID string, v energy.Variant, kWh float64) error {
	if m.closed {
		return ErrClosed
	}

	g, ok := m.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: %s", config.ErrUnknownGroup, groupID)
	}

	g.integrator(v).SetAccumulated(kWh)
	g.log.With(slog.Any("variant", v), slog.Float64("kwh", g.integrator(v).Value())).Info("Energy overwritten")

	if g.hasMembers() {
		m.publishEnergy(g)
	}
	m.save()

	return nil
}

// Republish announces every sensor again and publishes every known value, e.g. after Home Assistant restarted.
func (m *Monitor) Republish(ctx context.Context) error {
	var err error
	if doErr := m.do(ctx, func() { err = m.republish() }); doErr != nil {
		return doErr
	}

	return err
}

func (m *Monitor) republish() error {
	if m.closed {
		return ErrClosed
	}
	if !m.applied {
		return nil
	}

	if err := m.pub.Configure(m.ctx, m.cfg); err != nil {
		m.opts.Metrics.PublishError()
		return fmt.Errorf("configure sensors: %w", err)
	}

	for _, g := range m.groupsInOrder() {
		if !g.hasMembers() {
			continue
		}

		m.publishGroup(g)
		if g.power.Available() {
			m.publishValue(GroupKey(g.cfg.ID, MetricPower), energy.Round(g.power.Watts, powerDigits))
		}
		if avg, ok := g.mean.Value(m.clock.Now()); ok {
			m.publishValue(GroupKey(g.cfg.ID, MetricAverage), energy.Round(avg, powerDigits))
		}
		if on, known := g.standby.State(); known {
			m.publishState(GroupKey(g.cfg.ID, MetricStandby), on)
		}
	}

	m.publishFleet(true)

	return nil
}

// Snapshot returns the energy of every group.
func (m *Monitor) Snapshot(ctx context.Context) (*persistence.State, error) {
	var s *persistence.State
	if err := m.do(ctx, func() { s = m.snapshot() }); err != nil {
		return nil, err
	}

	return s, nil
}

func (m *Monitor) snapshot() *persistence.State {
	s := &persistence.State{
		SavedAt:      m.clock.Now(),
		Accumulators: make(map[string]persistence.Accumulated, len(m.groups)),
	}

	for id, g := range m.groups {
		s.Accumulators[id] = g.accumulated()
	}

	return s
}
