package energy

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// DefaultMaxSubInterval is the longest gap between two samples that is still integrated.
const DefaultMaxSubInterval = 120 * time.Second

// Variant selects how an Integrator behaves at the daily reset.
type Variant uint8

const (
	// Daily integrators reset to 0 at local midnight. They may decrease on negative power but never below 0.
	Daily Variant = iota
	// Total integrators never reset and never decrease.
	Total
)

func (v Variant) String() string {
	switch v {
	case Daily:
		return "today"
	case Total:
		return "total"
	default:
		panic(fmt.Errorf("invalid energy variant: %d", v))
	}
}

func (v Variant) LogValue() slog.Value {
	return slog.StringValue(v.String())
}

// ParseVariant is the inverse of Variant.String.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "today":
		return Daily, nil
	case "total":
		return Total, nil
	default:
		return 0, fmt.Errorf("unknown energy variant %q", s)
	}
}

// Sample is an aggregated power value in watts at a point in time.
type Sample struct {
	Time  time.Time
	Watts float64
}

func (s Sample) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Time("time", s.Time),
		slog.Float64("watts", s.Watts),
	)
}

// Accumulator turns a power signal into cumulative energy.
type Accumulator interface {
	// OnSample feeds the next power sample.
	OnSample(s Sample)
	// OnDailyReset is called at local midnight.
	OnDailyReset(at time.Time)
	// Value returns the cumulative energy in kWh.
	Value() float64
}

// IntegratorConfig configures an Integrator. The zero value is a Daily integrator using DefaultMaxSubInterval.
type IntegratorConfig struct {
	Variant Variant

	// MaxSubInterval is the longest gap that is integrated. Longer gaps restart integration from the newer sample.
	MaxSubInterval time.Duration

	// OnStall, if set, is called with both samples when a gap longer than MaxSubInterval was skipped.
	OnStall func(last, next Sample)
}

// Integrator accumulates kWh from watt samples with the trapezoidal rule. It implements Accumulator.
//
// Between two samples (t0, p0) and (t1, p1) it adds (p0+p1)/2 * (t1-t0) in hours / 1000. The cumulative value is
// floored at 0 after every step, and a Total integrator ignores negative steps entirely so that it never decreases.
type Integrator struct {
	cfg IntegratorConfig

	cumulative float64
	last       Sample
	hasLast    bool
	lastReset  time.Time
}

var _ Accumulator = &Integrator{}

// NewIntegrator constructs an idle Integrator. lastReset is reported by LastReset until the first daily reset.
func NewIntegrator(cfg IntegratorConfig, lastReset time.Time) *Integrator {
	if cfg.MaxSubInterval <= 0 {
		cfg.MaxSubInterval = DefaultMaxSubInterval
	}

	return &Integrator{cfg: cfg, lastReset: lastReset}
}

func (i *Integrator) Variant() Variant {
	return i.cfg.Variant
}

// OnSample integrates from the previous sample to s. The first sample after construction, a reset or a stall only
// becomes the starting point. Samples with a non-finite value are dropped. A sample older than the previous one adds
// no energy; its power is taken over at the previous time so no span is integrated twice.
func (i *Integrator) OnSample(s Sample) {
	if math.IsNaN(s.Watts) || math.IsInf(s.Watts, 0) {
		return
	}

	if !i.hasLast {
		i.last, i.hasLast = s, true
		return
	}

	last := i.last
	dt := s.Time.Sub(last.Time)
	if dt < 0 {
		i.last = Sample{Time: last.Time, Watts: s.Watts}
		return
	}

	i.last = s
	if dt > i.cfg.MaxSubInterval {
		if i.cfg.OnStall != nil {
			i.cfg.OnStall(last, s)
		}
		return
	}

	step := (last.Watts + s.Watts) / 2 * dt.Hours() / 1000
	if i.cfg.Variant == Total && step < 0 {
		return
	}

	i.cumulative = math.Max(0, i.cumulative+step)
}

// OnDailyReset clears a Daily integrator: the cumulative value becomes 0 and the next sample starts a new integration.
// Total integrators ignore it.
func (i *Integrator) OnDailyReset(at time.Time) {
	if i.cfg.Variant != Daily {
		return
	}

	i.cumulative = 0
	i.last, i.hasLast = Sample{}, false
	i.lastReset = at
}

func (i *Integrator) Value() float64 {
	return i.cumulative
}

// SetAccumulated overwrites the cumulative value, e.g. to restore a value recorded before a restart or by another
// accumulator. The last sample is kept, so integration continues from it. Negative and non-finite values become 0.
func (i *Integrator) SetAccumulated(kWh float64) {
	if math.IsNaN(kWh) || math.IsInf(kWh, 0) || kWh < 0 {
		kWh = 0
	}

	i.cumulative = kWh
}

// LastSample returns the sample integration continues from, if any.
func (i *Integrator) LastSample() (Sample, bool) {
	return i.last, i.hasLast
}

// LastReset returns when a Daily integrator was last reset.
func (i *Integrator) LastReset() time.Time {
	return i.lastReset
}
