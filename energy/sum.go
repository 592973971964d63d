package energy

import "slices"

// Sum adds up an ordered set of constituents, e.g. the daily energy of every group. Constituents without a value are
// skipped.
type Sum struct {
	digits int

	order  []string
	values map[string]float64
}

// NewSum constructs a Sum that rounds its result to digits decimal places.
func NewSum(digits int) *Sum {
	return &Sum{digits: digits, values: map[string]float64{}}
}

// Set records the value of constituent id, adding it if it is new.
func (s *Sum) Set(id string, v float64) {
	s.track(id)
	s.values[id] = v
}

// Invalidate marks constituent id as having no value. It stays part of the set.
func (s *Sum) Invalidate(id string) {
	s.track(id)
	delete(s.values, id)
}

// Remove drops constituent id from the set.
func (s *Sum) Remove(id string) {
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	delete(s.values, id)
}

// IDs returns the constituents in the order they were added.
func (s *Sum) IDs() []string {
	return slices.Clone(s.order)
}

// Value returns the rounded sum of every constituent that has a value. ok is false if none has.
func (s *Sum) Value() (float64, bool) {
	var total float64
	var ok bool
	for _, id := range s.order {
		if v, has := s.values[id]; has {
			total += v
			ok = true
		}
	}

	return Round(total, s.digits), ok
}

func (s *Sum) track(id string) {
	if !slices.Contains(s.order, id) {
		s.order = append(s.order, id)
	}
}
