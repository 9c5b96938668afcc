package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracking metrics
	EventsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_tracked_total",
			Help: "Total number of events accepted into the buffer",
		},
		[]string{"event"},
	)

	// Buffer metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_buffer_queue_depth",
			Help: "Current number of events waiting in the buffer",
		},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analytics_flush_duration_seconds",
			Help:    "Duration of buffer flushes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_flush_errors_total",
			Help: "Total number of failed flush attempts",
		},
	)

	FlushesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_flushes_skipped_total",
			Help: "Total number of flush ticks skipped because a flush was in progress",
		},
	)

	CriticalFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_critical_flushes_total",
			Help: "Total number of flushes triggered by a critical event",
		},
	)

	BatchesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_batches_dropped_total",
			Help: "Total number of event batches dropped after repeated flush failures",
		},
	)

	EventsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_events_persisted_total",
			Help: "Total number of events written to the durable store",
		},
	)

	// Profile metrics
	ProfilesIdentified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_profiles_identified_total",
			Help: "Total number of identify calls applied to user profiles",
		},
	)

	// Query metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_query_duration_seconds",
			Help:    "Duration of analytics queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// A/B test metrics
	VariantAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_abtest_assignments_total",
			Help: "Total number of new variant assignments",
		},
		[]string{"test_id"},
	)

	AssignmentCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_abtest_assignment_cache_hits_total",
			Help: "Total number of variant lookups served from the assignment cache",
		},
	)

	// Cohort metrics
	CohortsBuilt = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_cohorts_built_total",
			Help: "Total number of cohort snapshots created",
		},
	)

	// Insight metrics
	InsightRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_insight_requests_total",
			Help: "Total number of insight generation requests",
		},
		[]string{"status"},
	)

	// Realtime metrics
	RealtimePublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_realtime_events_published_total",
			Help: "Total number of events published to the realtime stream",
		},
	)
)
