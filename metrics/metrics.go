// Package metrics instruments precompute, search, and the strategy
// scheduler with Prometheus, in the idiom differ.StateDiffer uses
// (construct with a prometheus.Registerer, time stages with
// prometheus.NewTimer/ObserveDuration, count outcomes with CounterVecs).
// The concrete Metrics struct referenced by NewStateDiffer was not present
// among the retrieved teacher sources, so this is authored fresh in that
// idiom rather than copied.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every Prometheus collector the core registers.
type Metrics struct {
	PrecomputeDuration  prometheus.Histogram
	PrecomputePoolFails prometheus.Counter
	SearchDuration      prometheus.Histogram
	SearchOutcomes      *prometheus.CounterVec
	SignalsEmitted      prometheus.Counter
}

// New registers every collector against reg and returns the bundle. Passing
// a nil reg is invalid; callers that don't want metrics should use
// prometheus.NewRegistry() and discard it.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PrecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kuma",
			Subsystem: "precompute",
			Name:      "build_duration_seconds",
			Help:      "Time spent building a Precompute from a slow-chain PairSnapshot.",
		}),
		PrecomputePoolFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kuma",
			Subsystem: "precompute",
			Name:      "pool_failures_total",
			Help:      "Pools omitted from a Precompute because building their PoolStepTable failed.",
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kuma",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Time spent searching for a cross-chain signal on a fast-chain snapshot.",
		}),
		SearchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kuma",
			Subsystem: "search",
			Name:      "outcomes_total",
			Help:      "Search outcomes by result kind (ok, or an error taxonomy member).",
		}, []string{"outcome"}),
		SignalsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kuma",
			Subsystem: "strategy",
			Name:      "signals_emitted_total",
			Help:      "Signals published on the outbound broadcast channel.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.PrecomputeDuration,
		m.PrecomputePoolFails,
		m.SearchDuration,
		m.SearchOutcomes,
		m.SignalsEmitted,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
