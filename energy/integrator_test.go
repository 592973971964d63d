package energy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

func feed(a Accumulator, step time.Duration, watts ...float64) {
	for i, w := range watts {
		a.OnSample(Sample{Time: epoch.Add(time.Duration(i) * step), Watts: w})
	}
}

func constant(n int, w float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = w
	}

	return v
}

func TestIntegratorConstantPower(t *testing.T) {
	for _, tt := range []struct {
		name string
		step time.Duration
	}{
		{name: "1s", step: time.Second},
		{name: "10s", step: 10 * time.Second},
		{name: "60s", step: time.Minute},
	} {
		t.Run(tt.name, func(t *testing.T) {
			sut := NewIntegrator(IntegratorConfig{Variant: Total}, epoch)

			// One hour of 1.2 kW, regardless of how often it is sampled.
			n := int(time.Hour/tt.step) + 1
			feed(sut, tt.step, constant(n, 1200)...)

			assert.InDelta(t, 1.2, sut.Value(), 1e-9)
		})
	}
}

func TestIntegratorTrapezoid(t *testing.T) {
	sut := NewIntegrator(IntegratorConfig{Variant: Daily}, epoch)

	sut.OnSample(Sample{Time: at(0), Watts: 0})
	assert.Zero(t, sut.Value(), "a single sample must not add energy")

	sut.OnSample(Sample{Time: at(60), Watts: 120})
	// (0 + 120) / 2 W for one minute
	assert.InDelta(t, 60.0/60/1000, sut.Value(), 1e-12)

	last, ok := sut.LastSample()
	require.True(t, ok)
	assert.Equal(t, Sample{Time: at(60), Watts: 120}, last)
}

func TestIntegratorStall(t *testing.T) {
	var stalls [][2]Sample
	sut := NewIntegrator(IntegratorConfig{
		Variant:        Total,
		MaxSubInterval: 120 * time.Second,
		OnStall: func(last, next Sample) {
			stalls = append(stalls, [2]Sample{last, next})
		},
	}, epoch)

	sut.OnSample(Sample{Time: at(0), Watts: 100})
	sut.OnSample(Sample{Time: at(150), Watts: 100})

	assert.Zero(t, sut.Value(), "energy must not be extrapolated across a stall")
	require.Len(t, stalls, 1)
	assert.Equal(t, [2]Sample{{Time: at(0), Watts: 100}, {Time: at(150), Watts: 100}}, stalls[0])

	t.Run("Restarts From Newer Sample", func(t *testing.T) {
		sut.OnSample(Sample{Time: at(186), Watts: 100})
		assert.InDelta(t, 100*36.0/3600/1000, sut.Value(), 1e-12)
	})

	t.Run("Gap Equal To Limit Integrates", func(t *testing.T) {
		before := sut.Value()
		sut.OnSample(Sample{Time: at(306), Watts: 100})

		assert.InDelta(t, before+100*120.0/3600/1000, sut.Value(), 1e-12)
		assert.Len(t, stalls, 1)
	})
}

func TestIntegratorDailyReset(t *testing.T) {
	midnight := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	t.Run("Daily", func(t *testing.T) {
		sut := NewIntegrator(IntegratorConfig{Variant: Daily}, epoch)
		feed(sut, time.Second, 500, 500, 500)
		require.Positive(t, sut.Value())

		sut.OnDailyReset(midnight)

		assert.Zero(t, sut.Value())
		_, ok := sut.LastSample()
		assert.False(t, ok, "the next sample must start a new integration")
		assert.Equal(t, midnight, sut.LastReset())
	})

	t.Run("Total", func(t *testing.T) {
		sut := NewIntegrator(IntegratorConfig{Variant: Total}, epoch)
		feed(sut, time.Second, 500, 500, 500)
		before := sut.Value()

		sut.OnDailyReset(midnight)

		assert.Equal(t, before, sut.Value())
		assert.Equal(t, epoch, sut.LastReset())
	})
}

func TestIntegratorNeverDecreases(t *testing.T) {
	sut := NewIntegrator(IntegratorConfig{Variant: Total}, epoch)

	prev := 0.0
	for i, w := range []float64{10, 0, 250, 3000, 3000, 0, 0, 42.5, 1e4} {
		sut.OnSample(Sample{Time: at(float64(i * 5)), Watts: w})
		require.GreaterOrEqual(t, sut.Value(), prev, "sample %d", i)
		prev = sut.Value()
	}
}

func TestIntegratorNegativePower(t *testing.T) {
	t.Run("Total Ignores Negative Steps", func(t *testing.T) {
		sut := NewIntegrator(IntegratorConfig{Variant: Total}, epoch)
		feed(sut, time.Minute, 600, 600, -600, -600)

		assert.InDelta(t, 600.0/60/1000, sut.Value(), 1e-12)
	})

	t.Run("Daily Decreases", func(t *testing.T) {
		sut := NewIntegrator(IntegratorConfig{Variant: Daily}, epoch)
		feed(sut, time.Minute, 600, 600, 600, 0, 0)
		peak := sut.Value()

		sut.OnSample(Sample{Time: epoch.Add(5 * time.Minute), Watts: -600})
		assert.Less(t, sut.Value(), peak)
	})

	t.Run("Daily Floored At Zero", func(t *testing.T) {
		sut := NewIntegrator(IntegratorConfig{Variant: Daily}, epoch)
		feed(sut, time.Minute, -600, -600, -600)

		assert.Zero(t, sut.Value())
	})
}

func TestIntegratorIgnoresBadSamples(t *testing.T) {
	sut := NewIntegrator(IntegratorConfig{Variant: Total}, epoch)
	sut.OnSample(Sample{Time: at(0), Watts: 100})
	sut.OnSample(Sample{Time: at(1), Watts: nan()})
	sut.OnSample(Sample{Time: at(1), Watts: 100})

	assert.InDelta(t, 100.0/3600/1000, sut.Value(), 1e-12)
}

func TestIntegratorOutOfOrder(t *testing.T) {
	for _, v := range []Variant{Daily, Total} {
		t.Run(v.String(), func(t *testing.T) {
			sut := NewIntegrator(IntegratorConfig{Variant: v}, epoch)
			sut.OnSample(Sample{Time: at(0), Watts: 3600})
			sut.OnSample(Sample{Time: at(100), Watts: 3600})
			require.InDelta(t, 0.1, sut.Value(), 1e-12)

			sut.OnSample(Sample{Time: at(50), Watts: 3600})
			assert.InDelta(t, 0.1, sut.Value(), 1e-12, "an older sample adds no energy")

			last, ok := sut.LastSample()
			require.True(t, ok)
			assert.Equal(t, at(100), last.Time, "integration continues from the newest time")

			sut.OnSample(Sample{Time: at(110), Watts: 3600})
			assert.InDelta(t, 0.11, sut.Value(), 1e-12, "only the span after 100s is added")
		})
	}

	t.Run("Takes Over Power", func(t *testing.T) {
		sut := NewIntegrator(IntegratorConfig{Variant: Total}, epoch)
		sut.OnSample(Sample{Time: at(100), Watts: 0})
		sut.OnSample(Sample{Time: at(50), Watts: 3600})
		sut.OnSample(Sample{Time: at(110), Watts: 3600})

		assert.InDelta(t, 0.01, sut.Value(), 1e-12)
	})
}

func TestIntegratorSetAccumulated(t *testing.T) {
	sut := NewIntegrator(IntegratorConfig{Variant: Total}, epoch)
	sut.OnSample(Sample{Time: at(0), Watts: 3600})

	sut.SetAccumulated(12.5)
	assert.Equal(t, 12.5, sut.Value())

	sut.OnSample(Sample{Time: at(1), Watts: 3600})
	assert.InDelta(t, 12.501, sut.Value(), 1e-12, "integration continues from the last sample")

	sut.SetAccumulated(-3)
	assert.Zero(t, sut.Value())
}

func TestVariant(t *testing.T) {
	for _, v := range []Variant{Daily, Total} {
		parsed, err := ParseVariant(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, parsed)
	}

	_, err := ParseVariant("yesterday")
	require.Error(t, err)
}
