package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scoring metrics
	ScoringRequests prometheus.Counter
	ScoringDuration prometheus.Histogram

	// Playbook engine metrics
	PlaybooksEvaluated prometheus.Counter
	PlaybookMatches    prometheus.Counter
	ActionsQueued      prometheus.Counter
	ActionsSkipped     prometheus.Counter
	EngineRunDuration  prometheus.Histogram
	EngineErrors       prometheus.Counter

	// Executor metrics
	ActionsExecuted    *prometheus.CounterVec
	ActionsFailed      *prometheus.CounterVec
	ExecutionDuration  prometheus.Histogram
	PendingQueueSize   prometheus.Gauge

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// New creates and registers all application metrics under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		ScoringRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_requests_total",
			Help:      "Total number of churn scoring evaluations",
		}),
		ScoringDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_duration_seconds",
			Help:      "Time spent scoring a batch of customers",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		PlaybooksEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playbooks_evaluated_total",
			Help:      "Total number of playbook evaluations across engine runs",
		}),
		PlaybookMatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playbook_matches_total",
			Help:      "Total number of playbook/customer matches",
		}),
		ActionsQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_queued_total",
			Help:      "Total number of actions inserted into the queue",
		}),
		ActionsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_skipped_total",
			Help:      "Total number of actions skipped because a pending duplicate exists",
		}),
		EngineRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_run_duration_seconds",
			Help:      "Duration of playbook engine sweeps",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		EngineErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total number of per-pair errors during engine runs",
		}),
		ActionsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_executed_total",
			Help:      "Total number of queued actions executed successfully",
		}, []string{"action_type"}),
		ActionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_failed_total",
			Help:      "Total number of queued actions that failed execution",
		}, []string{"action_type"}),
		ExecutionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_execution_duration_seconds",
			Help:      "Time spent draining due queued actions",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		PendingQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_queue_size",
			Help:      "Current number of pending queued actions",
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}

// NewNop returns a metrics set registered on a throwaway registry,
// for use in tests.
func NewNop() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		ScoringRequests:    factory.NewCounter(prometheus.CounterOpts{Name: "scoring_requests_total"}),
		ScoringDuration:    factory.NewHistogram(prometheus.HistogramOpts{Name: "scoring_duration_seconds"}),
		PlaybooksEvaluated: factory.NewCounter(prometheus.CounterOpts{Name: "playbooks_evaluated_total"}),
		PlaybookMatches:    factory.NewCounter(prometheus.CounterOpts{Name: "playbook_matches_total"}),
		ActionsQueued:      factory.NewCounter(prometheus.CounterOpts{Name: "actions_queued_total"}),
		ActionsSkipped:     factory.NewCounter(prometheus.CounterOpts{Name: "actions_skipped_total"}),
		EngineRunDuration:  factory.NewHistogram(prometheus.HistogramOpts{Name: "engine_run_duration_seconds"}),
		EngineErrors:       factory.NewCounter(prometheus.CounterOpts{Name: "engine_errors_total"}),
		ActionsExecuted:    factory.NewCounterVec(prometheus.CounterOpts{Name: "actions_executed_total"}, []string{"action_type"}),
		ActionsFailed:      factory.NewCounterVec(prometheus.CounterOpts{Name: "actions_failed_total"}, []string{"action_type"}),
		ExecutionDuration:  factory.NewHistogram(prometheus.HistogramOpts{Name: "action_execution_duration_seconds"}),
		PendingQueueSize:   factory.NewGauge(prometheus.GaugeOpts{Name: "pending_queue_size"}),
		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{Name: "database_operations_total"}, []string{"operation", "status"}),
		DatabaseLatency:    factory.NewHistogramVec(prometheus.HistogramOpts{Name: "database_operation_duration_seconds"}, []string{"operation"}),
	}
}
