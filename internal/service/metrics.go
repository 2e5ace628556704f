package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	obituaryTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obituary_transitions_total",
			Help: "Total number of obituary status transitions",
		},
		[]string{"to"},
	)

	sweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obituary_sweep_runs_total",
			Help: "Total number of lifecycle sweeps by result",
		},
		[]string{"result"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obituary_sweep_duration_seconds",
			Help:    "Lifecycle sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	renewalNotificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obituary_renewal_notifications_total",
			Help: "Total number of renewal notifications enqueued",
		},
	)

	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obituary_exports_total",
			Help: "Total number of archive exports by result",
		},
		[]string{"result"},
	)

	exportSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obituary_export_size_bytes",
			Help:    "Archive export size in bytes",
			Buckets: prometheus.ExponentialBuckets(10_000, 4, 8), // 10KB to ~160MB
		},
	)

	cacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obituary_cache_hits_total",
			Help: "Total number of obituary cache hits",
		},
	)

	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obituary_cache_misses_total",
			Help: "Total number of obituary cache misses",
		},
	)

	imageUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obituary_image_uploads_total",
			Help: "Total number of obituary image uploads by result",
		},
		[]string{"result"},
	)
)
