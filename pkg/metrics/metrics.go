package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Manifest analysis metrics
	ManifestsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scc_agent_manifests_parsed_total",
			Help: "Total number of manifest files parsed by result",
		},
		[]string{"result"},
	)

	RequirementsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scc_agent_requirements_extracted_total",
			Help: "Total number of security requirements extracted by kind and severity",
		},
		[]string{"kind", "severity"},
	)

	// Synthesis metrics
	SCCGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scc_agent_scc_generated_total",
			Help: "Total number of SCC objects produced by operation (synthesize, update, optimize)",
		},
		[]string{"operation"},
	)

	// Deploy metrics
	DeployAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scc_agent_deploy_attempts_total",
			Help: "Total number of resource deploy attempts by kind and status",
		},
		[]string{"kind", "status"},
	)

	SCCFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scc_agent_scc_attributable_failures_total",
			Help: "Total number of deploy failures matching a known SCC denial signature",
		},
	)

	// Oracle metrics
	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scc_agent_oracle_calls_total",
			Help: "Total number of oracle analysis calls by status",
		},
		[]string{"status"},
	)

	AdjustmentsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scc_agent_adjustments_applied_total",
			Help: "Total number of oracle adjustments applied to a working SCC",
		},
	)

	AdjustmentsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scc_agent_adjustments_dropped_total",
			Help: "Total number of oracle adjustments dropped below the confidence gate",
		},
	)

	// Controller metrics
	ControllerIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scc_agent_controller_iterations",
			Help:    "Number of deploy iterations per adjustment run",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
	)

	ControllerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scc_agent_controller_runs_total",
			Help: "Total number of adjustment runs by terminal state",
		},
		[]string{"state"},
	)

	ClusterOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scc_agent_cluster_operations_total",
			Help: "Total number of cluster API operations",
		},
		[]string{"operation", "status"},
	)

	ClusterOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scc_agent_cluster_operation_duration_seconds",
			Help:    "Duration of cluster API operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
