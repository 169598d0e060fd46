package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_events_consumed_total",
			Help: "Total number of feed messages received",
		},
		[]string{"transport"},
	)

	EventsMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_events_malformed_total",
			Help: "Total number of feed messages discarded as malformed",
		},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_event_processing_duration_seconds",
			Help:    "Time taken to store and evaluate one event",
			Buckets: prometheus.DefBuckets,
		},
	)

	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_alerts_generated_total",
			Help: "Total number of rule alerts generated",
		},
		[]string{"severity"},
	)

	RuleEvaluationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_rule_evaluation_errors_total",
			Help: "Total number of rule evaluations that failed",
		},
		[]string{"rule_id"},
	)

	RegexTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_regex_timeouts_total",
			Help: "Total number of rule conditions that exceeded the match timeout",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_notifications_total",
			Help: "Notification attempts by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	CorrelationSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_correlation_sweeps_total",
			Help: "Total number of correlation sweeps run",
		},
	)

	CorrelationSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_correlation_sweep_duration_seconds",
			Help:    "Time taken by one correlation sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	CorrelationAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_correlation_alerts_total",
			Help: "Total number of correlation alerts generated",
		},
		[]string{"alert_type"},
	)

	DetectorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_detector_failures_total",
			Help: "Detector invocations that failed or panicked",
		},
		[]string{"detector"},
	)

	CollectorLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_collector_lines_total",
			Help: "Syslog lines received by the collector by outcome",
		},
		[]string{"transport", "result"},
	)
)
