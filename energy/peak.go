package energy

// PeakTracker holds the highest aggregated power seen since the last reset. It starts at 0 and is never negative.
type PeakTracker struct {
	peak float64
}

// Observe raises the peak to v if v is higher. It reports whether the peak changed.
func (p *PeakTracker) Observe(v float64) bool {
	if v <= p.peak {
		return false
	}

	p.peak = v
	return true
}

// Reset sets the peak back to 0.
func (p *PeakTracker) Reset() {
	p.peak = 0
}

func (p *PeakTracker) Value() float64 {
	return p.peak
}
