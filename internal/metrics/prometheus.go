package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscanner_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketscanner_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	// Workflow metrics
	WorkflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscanner_workflow_runs_total",
			Help: "Total number of workflow runs",
		},
		[]string{"workflow", "status"}, // status: ok|degraded|rejected
	)

	WorkflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketscanner_workflow_duration_seconds",
			Help:    "Workflow fan-out/fan-in duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"workflow"},
	)

	WorkflowConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketscanner_workflow_confidence",
			Help:    "Aggregate confidence of completed workflows",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"workflow"},
	)

	// Agent call metrics (coordinator side)
	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscanner_agent_calls_total",
			Help: "Total number of agent calls issued by the coordinator",
		},
		[]string{"agent", "status", "reason"}, // status: success|failure
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketscanner_agent_latency_seconds",
			Help:    "Agent call latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"agent"},
	)

	// Agent task metrics (worker agent side)
	AgentTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscanner_agent_tasks_total",
			Help: "Total number of tasks served by a worker agent",
		},
		[]string{"agent", "status"}, // status: ok|invalid_input|upstream_unavailable|error
	)

	// Upstream market data metrics
	UpstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscanner_upstream_calls_total",
			Help: "Total number of upstream market data calls",
		},
		[]string{"feed", "status"},
	)

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketscanner_upstream_latency_seconds",
			Help:    "Upstream market data latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"feed"},
	)

	// Supervisor metrics
	HealthProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscanner_health_probes_total",
			Help: "Total number of supervisor health probes",
		},
		[]string{"agent", "status"}, // status: ok|unreachable
	)

	// Event metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscanner_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)

	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketscanner_stream_subscribers",
			Help: "Current number of websocket result subscribers",
		},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			WorkerExecutions,
			WorkerDuration,
			WorkflowRuns,
			WorkflowDuration,
			WorkflowConfidence,
			AgentCalls,
			AgentLatency,
			AgentTasks,
			UpstreamCalls,
			UpstreamLatency,
			HealthProbes,
			KafkaMessages,
			StreamSubscribers,
		)
	})
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordWorkflow records a completed or rejected workflow run
func RecordWorkflow(workflow, status string, duration time.Duration, confidence float64) {
	WorkflowRuns.WithLabelValues(workflow, status).Inc()
	if status == "rejected" {
		return
	}
	WorkflowDuration.WithLabelValues(workflow).Observe(duration.Seconds())
	WorkflowConfidence.WithLabelValues(workflow).Observe(confidence)
}

// RecordAgentCall records one coordinator → agent call
func RecordAgentCall(agent, status, reason string, latency time.Duration) {
	AgentCalls.WithLabelValues(agent, status, reason).Inc()
	AgentLatency.WithLabelValues(agent).Observe(latency.Seconds())
}

// RecordAgentTask records a task served by a worker agent
func RecordAgentTask(agent, status string) {
	AgentTasks.WithLabelValues(agent, status).Inc()
}

// RecordUpstreamCall records an upstream market data call
func RecordUpstreamCall(feed string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	UpstreamCalls.WithLabelValues(feed, status).Inc()
	UpstreamLatency.WithLabelValues(feed).Observe(latency.Seconds())
}

// RecordHealthProbe records a supervisor probe outcome
func RecordHealthProbe(agent, status string) {
	HealthProbes.WithLabelValues(agent, status).Inc()
}

// RecordKafkaMessage records a produced or consumed message
func RecordKafkaMessage(topic, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, direction, status).Inc()
}
