// Package metrics exposes Prometheus metrics about power groups. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "powergroup"

// Metrics holds every collector registered by New.
type Metrics struct {
	samples       *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	stalls        *prometheus.CounterVec
	resets        prometheus.Counter
	publishErrors prometheus.Counter
	power         *prometheus.GaugeVec
	energy        *prometheus.GaugeVec
}

// New constructs the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Aggregated power samples computed per group.",
		}, []string{"group"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_readings_total",
			Help:      "Member readings skipped because they were unavailable, not a number or in an unsupported unit.",
		}, []string{"group"}),
		stalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integration_stalls_total",
			Help:      "Gaps between power samples that exceeded the maximum sub interval.",
		}, []string{"group", "variant"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_resets_total",
			Help:      "Daily resets of peak and energy today.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed writes of sensor values.",
		}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_watts",
			Help:      "Current aggregated power per group.",
		}, []string{"group"}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "energy_kwh",
			Help:      "Accumulated energy per group and variant.",
		}, []string{"group", "variant"}),
	}

	reg.MustRegister(
		m.samples,
		m.skipped,
		m.stalls,
		m.resets,
		m.publishErrors,
		m.power,
		m.energy,
	)

	return m
}

// Sample records an aggregation for group.
func (m *Metrics) Sample(group string, watts float64, skipped int) {
	if m == nil {
		return
	}

	m.samples.WithLabelValues(group).Inc()
	m.skipped.WithLabelValues(group).Add(float64(skipped))
	m.power.WithLabelValues(group).Set(watts)
}

func (m *Metrics) Stall(group, variant string) {
	if m == nil {
		return
	}

	m.stalls.WithLabelValues(group, variant).Inc()
}

func (m *Metrics) Energy(group, variant string, kWh float64) {
	if m == nil {
		return
	}

	m.energy.WithLabelValues(group, variant).Set(kWh)
}

func (m *Metrics) Reset() {
	if m == nil {
		return
	}

	m.resets.Inc()
}

func (m *Metrics) PublishError() {
	if m == nil {
		return
	}

	m.publishErrors.Inc()
}

// Forget drops the series of a removed group.
func (m *Metrics) Forget(group string) {
	if m == nil {
		return
	}

	labels := prometheus.Labels{"group": group}
	m.samples.DeletePartialMatch(labels)
	m.skipped.DeletePartialMatch(labels)
	m.stalls.DeletePartialMatch(labels)
	m.power.DeletePartialMatch(labels)
	m.energy.DeletePartialMatch(labels)
}
