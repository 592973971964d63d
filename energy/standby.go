package energy

// StandbyClassifier reports whether power is below a threshold. While the power is unavailable, the previous
// classification is kept.
type StandbyClassifier struct {
	Threshold float64

	on    bool
	known bool
}

// NewStandbyClassifier constructs a classifier for threshold watts.
func NewStandbyClassifier(threshold float64) *StandbyClassifier {
	return &StandbyClassifier{Threshold: threshold}
}

// Observe classifies watts. When ok is false the reading is ignored. It reports whether the classification changed,
// which includes the first classification.
func (s *StandbyClassifier) Observe(watts float64, ok bool) bool {
	if !ok {
		return false
	}

	on := watts < s.Threshold
	changed := !s.known || on != s.on
	s.on, s.known = on, true

	return changed
}

// State returns the current classification. known is false until the first valid reading was observed.
func (s *StandbyClassifier) State() (on bool, known bool) {
	return s.on, s.known
}
