package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	computesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tpulink_computes_total",
		Help: "Total number of completed matrix multiplies",
	})

	computeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tpulink_compute_duration_seconds",
		Help:    "Wall-clock time of one load/compute/poll/read cycle",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})

	throughputOps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tpulink_throughput_ops",
		Help: "Accumulated MAC operations per second across the session",
	})

	deviceCycles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tpulink_device_cycles",
		Help: "Cycle count reported by the accelerator for the last compute",
	})

	linkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tpulink_link_errors_total",
		Help: "Failed multiply attempts by error kind",
	}, []string{"kind"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tpulink_result_cache_hits_total",
		Help: "Multiplies served from the host-side result cache",
	})
)
