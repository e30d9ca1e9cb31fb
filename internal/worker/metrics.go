package worker

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Fetches   *prometheus.CounterVec
	Evictions *prometheus.CounterVec
	Lifecycle *prometheus.CounterVec
}

// NewMetrics registers the worker collectors on reg. A nil reg yields
// working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sw_fetch_total",
				Help: "Intercepted fetches by strategy and response source",
			},
			[]string{"strategy", "source"},
		),
		Evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sw_cache_evictions_total",
				Help: "Entries evicted from bounded caches",
			},
			[]string{"cache"},
		),
		Lifecycle: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sw_lifecycle_total",
				Help: "Install and activate outcomes",
			},
			[]string{"phase", "outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Fetches, m.Evictions, m.Lifecycle)
	}
	return m
}
