package monitor

import (
	"context"
	"slices"
	"time"

	"github.com/mephdrac/powergroup/energy"
)

// Status is a point-in-time view of every group and the fleet.
type Status struct {
	Name   string        `json:"name"`
	Groups []GroupStatus `json:"groups"`
	Fleet  FleetStatus   `json:"fleet"`
}

// GroupStatus describes one group. Pointer fields are nil while the value is unknown.
type GroupStatus struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Entities []string `json:"entities"`
	Standby  float64  `json:"standby_threshold"`

	Power     *float64  `json:"power,omitempty"`
	Valid     int       `json:"valid_members"`
	Skipped   int       `json:"skipped_members"`
	Peak      float64   `json:"peak"`
	IsStandby *bool     `json:"is_standby,omitempty"`
	Average   *float64  `json:"average,omitempty"`
	Today     float64   `json:"today"`
	Total     float64   `json:"total"`
	LastReset time.Time `json:"last_reset"`
}

type FleetStatus struct {
	Power     *float64 `json:"power,omitempty"`
	IsStandby *bool    `json:"is_standby,omitempty"`
	Today     float64  `json:"today"`
	Total     float64  `json:"total"`
}

// Status returns the current values of every group in configuration order.
func (m *Monitor) Status(ctx context.Context) (Status, error) {
	var s Status
	if err := m.do(ctx, func() { s = m.status() }); err != nil {
		return Status{}, err
	}

	return s, nil
}

func (m *Monitor) status() Status {
	now := m.clock.Now()
	s := Status{Name: m.cfg.Name, Groups: make([]GroupStatus, 0, len(m.order))}

	for _, g := range m.groupsInOrder() {
		gs := GroupStatus{
			ID:       g.cfg.ID,
			Name:     g.cfg.Name,
			Entities: slices.Clone(g.cfg.Entities),
			Standby:  g.standby.Threshold,

			Valid:     g.power.Valid,
			Skipped:   g.power.Skipped,
			Peak:      energy.Round(g.peak.Value(), powerDigits),
			Today:     energy.Round(g.today.Value(), energyDigits),
			Total:     energy.Round(g.total.Value(), energyDigits),
			LastReset: g.today.LastReset(),
		}

		if g.power.Available() {
			gs.Power = ptr(energy.Round(g.power.Watts, powerDigits))
		}
		if on, known := g.standby.State(); known {
			gs.IsStandby = ptr(on)
		}
		if avg, ok := g.mean.Value(now); ok {
			gs.Average = ptr(energy.Round(avg, powerDigits))
		}

		s.Groups = append(s.Groups, gs)
	}

	if v, ok := m.fleet.power.Value(); ok {
		s.Fleet.Power = ptr(v)
	}
	if on, known := m.fleet.standby.State(); known {
		s.Fleet.IsStandby = ptr(on)
	}
	s.Fleet.Today, _ = m.fleet.today.Value()
	s.Fleet.Total, _ = m.fleet.total.Value()

	return s
}

// Group returns the status of a single group.
func (s Status) Group(id string) (GroupStatus, bool) {
	i := slices.IndexFunc(s.Groups, func(g GroupStatus) bool { return g.ID == id })
	if i < 0 {
		return GroupStatus{}, false
	}

	return s.Groups[i], true
}

func ptr[T any](v T) *T {
	return &v
}
