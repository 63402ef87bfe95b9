package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indpipe_refreshes_total",
		Help: "Pair refreshes attempted, by outcome",
	}, []string{"status"})

	rowsComputedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indpipe_indicator_rows_computed_total",
		Help: "Total indicator rows computed across all refreshes",
	})

	computeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indpipe_compute_duration_seconds",
		Help:    "Indicator engine compute latency per series",
		Buckets: prometheus.DefBuckets,
	})

	persistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indpipe_persist_duration_seconds",
		Help:    "Indicator row bulk upsert latency per series",
		Buckets: prometheus.DefBuckets,
	})
)
