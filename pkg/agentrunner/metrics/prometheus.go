package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements Recorder using Prometheus client metrics.
// Exposed for in-process scraping only: no HTTP handler is wired here, per
// the out-of-scope decision on Prometheus-scrape-surfaces.
type PrometheusRecorder struct {
	executions      *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	executionLength *prometheus.HistogramVec
}

// NewPrometheusRecorder registers and returns a Prometheus-backed recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		executions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrator_agent_executions_total",
				Help: "Total AgentRunner executions by agent, phase, and outcome",
			},
			[]string{"agent_id", "phase", "status", "error_kind"},
		),
		tokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrator_agent_tokens_total",
				Help: "Total tokens consumed by AgentRunner executions",
			},
			[]string{"agent_id", "phase", "type"},
		),
		executionLength: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "narrator_agent_execution_duration_seconds",
				Help:    "AgentRunner execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_id", "phase", "status"},
		),
	}
}

// ObserveSuccess records a successful agent execution.
func (p *PrometheusRecorder) ObserveSuccess(agentID, phase string, duration time.Duration, usage Usage) {
	p.executions.WithLabelValues(agentID, phase, "success", "").Inc()
	p.tokensTotal.WithLabelValues(agentID, phase, "prompt").Add(float64(usage.PromptTokens))
	p.tokensTotal.WithLabelValues(agentID, phase, "completion").Add(float64(usage.CompletionTokens))
	p.executionLength.WithLabelValues(agentID, phase, "success").Observe(duration.Seconds())
}

// ObserveFailure records a failed agent execution.
func (p *PrometheusRecorder) ObserveFailure(agentID, phase, errorKind string, duration time.Duration) {
	p.executions.WithLabelValues(agentID, phase, "failure", errorKind).Inc()
	p.executionLength.WithLabelValues(agentID, phase, "failure").Observe(duration.Seconds())
}
