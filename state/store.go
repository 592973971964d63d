// Package state keeps the latest state of the Home Assistant entities that power groups are built from and notifies
// subscribers when one of them changes.
package state

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mephdrac/powergroup/energy"
	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/log"
)

// EntityState is the last known state of an entity. It implements slog.LogValuer.
type EntityState struct {
	State   string
	Unit    string
	Updated time.Time
}

func (e EntityState) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("state", e.State),
		slog.String("unit", e.Unit),
		slog.Time("updated", e.Updated),
	)
}

// Reading parses the state as a number. Placeholder states such as "unavailable" and anything that is not a number
// produce energy.Unavailable.
func (e EntityState) Reading() energy.Reading {
	if !hass.HasValue(e.State) {
		return energy.Unavailable
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(e.State), 64)
	if err != nil {
		return energy.Unavailable
	}

	return energy.Reading{Value: v, Unit: e.Unit, OK: true}
}

// Callback is notified with the id and new state of a changed entity.
type Callback func(id string, s EntityState)

// Store holds entity states. The zero value is not usable; construct one with NewStore.
type Store struct {
	mu       sync.RWMutex
	entities map[string]EntityState
	subs     map[*Subscription]struct{}

	// dispatch serializes notification so callbacks observe changes in arrival order.
	dispatch sync.Mutex

	log *slog.Logger
}

func NewStore() *Store {
	return &Store{
		entities: map[string]EntityState{},
		subs:     map[*Subscription]struct{}{},

		log: log.ForComponent("state"),
	}
}

// Get returns the state of id.
func (s *Store) Get(id string) (EntityState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	return e, ok
}

// Reading returns the parsed state of id, or energy.Unavailable if the entity is unknown.
func (s *Store) Reading(id string) energy.Reading {
	e, ok := s.Get(id)
	if !ok {
		return energy.Unavailable
	}

	return e.Reading()
}

// IDs returns every known entity id, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// SetState records a new state for id and notifies subscribers.
func (s *Store) SetState(id, state string, at time.Time) {
	s.update(id, func(e *EntityState) {
		e.State = state
		e.Updated = at
	})
}

// SetUnit records the unit of measurement of id and notifies subscribers.
func (s *Store) SetUnit(id, unit string) {
	s.update(id, func(e *EntityState) {
		e.Unit = unit
	})
}

func (s *Store) update(id string, fn func(e *EntityState)) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	e := s.entities[id]
	fn(&e)
	s.entities[id] = e

	var matched []*Subscription
	for sub := range s.subs {
		if sub.watches(id) {
			matched = append(matched, sub)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(matched, func(a, b *Subscription) int { return a.seq - b.seq })

	s.log.With(slog.String("entity", id), slog.Any("state", e), slog.Int("subscribers", len(matched))).Debug("Entity changed")
	for _, sub := range matched {
		sub.deliver(id, e)
	}
}

var subscriptionSeq atomic.Int64

// Subscribe calls cb whenever one of ids changes. Callbacks run in the goroutine that changed the entity, one at a
// time, in the order the changes arrived. Cancel the returned Subscription to stop delivery.
func (s *Store) Subscribe(ids []string, cb Callback) *Subscription {
	sub := &Subscription{
		store: s,
		ids:   slices.Clone(ids),
		cb:    cb,
		seq:   int(subscriptionSeq.Add(1)),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	return sub
}

// Subscription is the handle returned by Store.Subscribe.
type Subscription struct {
	store   *Store
	ids     []string
	cb      Callback
	seq     int
	revoked atomic.Bool
}

func (sub *Subscription) watches(id string) bool {
	return slices.Contains(sub.ids, id)
}

func (sub *Subscription) deliver(id string, e EntityState) {
	if sub.revoked.Load() {
		return
	}

	sub.cb(id, e)
}

// Cancel stops delivery. Changes that were not already being delivered when Cancel returned are dropped. It is safe to
// call more than once and from within the callback itself.
func (sub *Subscription) Cancel() {
	if sub.revoked.Swap(true) {
		return
	}

	sub.store.mu.Lock()
	delete(sub.store.subs, sub)
	sub.store.mu.Unlock()
}
