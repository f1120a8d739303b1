package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type storeMetrics struct {
	updates   *prometheus.CounterVec
	conflicts prometheus.Counter
	attempts  prometheus.Histogram
}

// newStoreMetrics registers on reg; a nil reg keeps the metrics unregistered.
func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	factory := promauto.With(reg)
	return &storeMetrics{
		updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "election",
			Subsystem: "store",
			Name:      "atomic_updates_total",
			Help:      "Atomic document updates by outcome",
		}, []string{"result"}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "election",
			Subsystem: "store",
			Name:      "version_conflicts_total",
			Help:      "Conditional writes rejected for a stale version",
		}),
		attempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "election",
			Subsystem: "store",
			Name:      "update_attempts",
			Help:      "Read-modify-write attempts per atomic update",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}),
	}
}
