package energy

import (
	"time"
)

// DefaultMeanWindow is the window of the average power sensor.
const DefaultMeanWindow = 15 * time.Minute

// Mean is the arithmetic mean of the samples seen within a sliding time window. When every sample is older than the
// window, the newest one is kept so the mean never becomes unavailable once a sample was seen.
type Mean struct {
	window  time.Duration
	samples []Sample
}

// NewMean constructs a Mean over window. Zero or negative windows use DefaultMeanWindow.
func NewMean(window time.Duration) *Mean {
	if window <= 0 {
		window = DefaultMeanWindow
	}

	return &Mean{window: window}
}

// Add records s. A sample older than the newest one is recorded at the newest one's time.
func (m *Mean) Add(s Sample) {
	if n := len(m.samples); n > 0 && s.Time.Before(m.samples[n-1].Time) {
		s.Time = m.samples[n-1].Time
	}

	m.samples = append(m.samples, s)
	m.expire(s.Time)
}

// Value returns the mean as of now. ok is false until the first sample was added.
func (m *Mean) Value(now time.Time) (float64, bool) {
	m.expire(now)
	if len(m.samples) == 0 {
		return 0, false
	}

	var total float64
	for _, s := range m.samples {
		total += s.Watts
	}

	return total / float64(len(m.samples)), true
}

// Reset drops every sample.
func (m *Mean) Reset() {
	m.samples = nil
}

func (m *Mean) expire(now time.Time) {
	cutoff := now.Add(-m.window)

	n := 0
	for n < len(m.samples)-1 && m.samples[n].Time.Before(cutoff) {
		n++
	}

	if n > 0 {
		m.samples = append(m.samples[:0], m.samples[n:]...)
	}
}
