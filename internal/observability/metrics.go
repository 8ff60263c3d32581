package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// All metrics are registered globally, so every binary exposes the full set;
// series a service never touches simply stay at zero.

// namespace is the global prefix for all metrics (e.g., superposition_...).
const namespace = "superposition"

// Outcome label values shared by several counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// remoteCallBuckets covers a bulk call to the context store, which may take
// several seconds before the client timeout fires.
var remoteCallBuckets = []float64{.005, .010, .025, .050, .100, .250, .500, 1, 2.5, 5, 10}

var (
	// -------------------------------------------------------------------------
	// HTTP (experiments and context APIs)
	// -------------------------------------------------------------------------

	// HTTPReqDuration measures the latency of HTTP requests.
	// Metric: superposition_http_handling_seconds
	HTTPReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "path"})

	// HTTPReqTotal counts HTTP requests by response code.
	// Metric: superposition_http_requests_total
	HTTPReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests",
	}, []string{"service", "method", "path", "code"})

	// -------------------------------------------------------------------------
	// SNOWFLAKE
	// -------------------------------------------------------------------------

	SnowflakeIDsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snowflake",
		Name:      "ids_generated_total",
		Help:      "Total experiment ids handed out",
	})

	// SnowflakeAcquireFailures counts callers that gave up waiting for the generator.
	SnowflakeAcquireFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snowflake",
		Name:      "acquire_failures_total",
		Help:      "Total id requests abandoned while waiting for the generator",
	})

	// -------------------------------------------------------------------------
	// EXPERIMENTS
	// -------------------------------------------------------------------------

	// ExperimentsCreated counts create attempts by their final outcome.
	// Metric: superposition_experiments_created_total{outcome}
	ExperimentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "experiments",
		Name:      "created_total",
		Help:      "Experiment create attempts by outcome",
	}, []string{"outcome"}) // success, rejected, failed

	// ExperimentStepFailures counts the orchestration step a create failed at.
	ExperimentStepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "experiments",
		Name:      "step_failures_total",
		Help:      "Experiment create failures by orchestration step",
	}, []string{"step"})

	// ExperimentCompensations tracks cleanup of contexts left behind by a failed create.
	ExperimentCompensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "experiments",
		Name:      "compensations_total",
		Help:      "Compensating deletes issued after a failed create",
	}, []string{"outcome"}) // success, failure, enqueued

	ExperimentCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "experiments",
		Name:      "cache_hits_total",
		Help:      "Experiment lookups served from memory",
	})

	ExperimentCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "experiments",
		Name:      "cache_misses_total",
		Help:      "Experiment lookups that went to the database",
	})

	// -------------------------------------------------------------------------
	// CONTEXT STORE
	// -------------------------------------------------------------------------

	// ContextStoreCallDuration measures bulk calls made by the experiments service.
	// Metric: superposition_context_store_call_seconds{outcome}
	ContextStoreCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "context_store",
		Name:      "call_seconds",
		Help:      "Latency of bulk calls to the context store",
		Buckets:   remoteCallBuckets,
	}, []string{"outcome"})

	// ContextOperationsApplied counts bulk operations applied by the context store, by tag.
	ContextOperationsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "context_store",
		Name:      "operations_applied_total",
		Help:      "Context operations committed by the context store",
	}, []string{"operation"}) // PUT, DELETE, MOVE

	// -------------------------------------------------------------------------
	// RECONCILER (Workers)
	// -------------------------------------------------------------------------

	// ReconcilerJobDuration measures latency from enqueue to processing finish.
	ReconcilerJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "job_processing_duration_seconds",
		Help:      "End-to-end latency from enqueue to processing finish",
		Buckets:   prometheus.DefBuckets,
	})

	ReconcilerJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "jobs_total",
		Help:      "Total orphan cleanup jobs processed",
	}, []string{"status"}) // success, requeued, fail, invalid

	OrphanQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "queue_depth",
		Help:      "Current number of orphan cleanup jobs waiting",
	})

	// -------------------------------------------------------------------------
	// INFRASTRUCTURE POOLS
	// -------------------------------------------------------------------------

	// DBPoolConnections reports pgxpool connection counts by state (total, idle, in_use, max).
	DBPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database_pool",
		Name:      "connections",
		Help:      "PostgreSQL pool connections by state",
	}, []string{"state"})

	DBPoolAcquireCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database_pool",
		Name:      "acquire_count_total",
		Help:      "Cumulative successful connection acquisitions",
	})

	DBPoolAcquireDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database_pool",
		Name:      "acquire_duration_seconds_total",
		Help:      "Cumulative time spent acquiring connections",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database_pool",
		Name:      "wait_count_total",
		Help:      "Cumulative acquisitions that had to wait for a connection",
	})

	// RedisPoolConnections reports go-redis pool connections by state (total, idle, stale).
	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis_pool",
		Name:      "connections",
		Help:      "Redis pool connections by state",
	}, []string{"state"})

	RedisPoolTimeouts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis_pool",
		Name:      "timeouts_total",
		Help:      "Cumulative times a connection could not be obtained in time",
	})
)
