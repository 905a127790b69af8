package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftsmith_runs_submitted_total",
			Help: "Total number of report runs submitted",
		},
	)

	RunsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftsmith_runs_rejected_total",
			Help: "Total number of report run submissions rejected",
		},
		[]string{"reason"},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftsmith_runs_completed_total",
			Help: "Total number of report runs finished, by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draftsmith_run_duration_seconds",
			Help:    "End-to-end report run duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftsmith_phase_duration_seconds",
			Help:    "Duration of each report phase in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"phase"},
	)

	ApprovalRedrafts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draftsmith_approval_redraft_cycles",
			Help:    "Number of reject-redraft cycles before structure approval",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		},
	)

	// Tool metrics
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftsmith_tool_calls_total",
			Help: "Total number of lookup tool invocations",
		},
		[]string{"tool", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftsmith_tool_call_duration_ms",
			Help:    "Lookup tool call duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000},
		},
		[]string{"tool"},
	)

	// Generation collaborator metrics
	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftsmith_generation_calls_total",
			Help: "Total number of generation service calls",
		},
		[]string{"operation", "status"},
	)

	GenerationTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftsmith_generation_tokens_total",
			Help: "Total tokens consumed by generation calls",
		},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftsmith_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftsmith_session_cache_hits_total",
			Help: "Session local cache hits",
		},
	)

	SessionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftsmith_session_cache_misses_total",
			Help: "Session local cache misses",
		},
	)

	SessionCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "draftsmith_session_cache_size",
			Help: "Number of sessions held in the local cache",
		},
	)

	SessionCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftsmith_session_cache_evictions_total",
			Help: "Sessions evicted from the local cache",
		},
	)

	// Streaming metrics
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "draftsmith_stream_subscribers",
			Help: "Number of active run event subscribers",
		},
	)

	StreamEventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftsmith_stream_events_published_total",
			Help: "Total run events published",
		},
	)
)
