package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "blackboard"

// Metrics collects Prometheus metrics for engine execution.
//
// Exposed series (all under the "blackboard" namespace):
//   - runs_total{status}: completed Invoke calls by outcome
//   - steps_total{node, signal}: executed steps by node and routing signal
//   - step_latency_seconds{node}: node execution duration histogram
//   - checkpoint_writes_total: checkpoints persisted
//   - active_runs: currently executing runs
//
// All methods are nil-safe so an unconfigured engine pays no cost.
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	stepsTotal       *prometheus.CounterVec
	stepLatency      *prometheus.HistogramVec
	checkpointWrites prometheus.Counter
	activeRuns       prometheus.Gauge
}

// NewMetrics registers the engine metrics with the given registerer
// (prometheus.DefaultRegisterer for the usual /metrics endpoint).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Completed workflow runs by outcome.",
		}, []string{"status"}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "steps_total",
			Help:      "Executed workflow steps by node and resulting signal.",
		}, []string{"node", "signal"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "step_latency_seconds",
			Help:      "Node execution duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
		checkpointWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "checkpoint_writes_total",
			Help:      "Checkpoints persisted to the store.",
		}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_runs",
			Help:      "Runs currently executing.",
		}),
	}
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

func (m *Metrics) runFinished(status string) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) stepExecuted(node, signal string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(node, signal).Inc()
	m.stepLatency.WithLabelValues(node).Observe(elapsed.Seconds())
}

func (m *Metrics) checkpointWritten() {
	if m == nil {
		return
	}
	m.checkpointWrites.Inc()
}
