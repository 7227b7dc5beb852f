package metrics

import (
	"sync"
	"time"
)

// AgentMetrics is the aggregated counters InternalRecorder keeps per agent.
type AgentMetrics struct {
	PromptTokens     int64
	CompletionTokens int64
	SuccessCount     int64
	FailureCount     int64
	TotalLatency     time.Duration
	LastUpdated      time.Time
}

// InternalRecorder aggregates metrics in memory, keyed by agent id. Default
// recorder for tests and for deployments with no Prometheus scrape target.
type InternalRecorder struct {
	mu     sync.RWMutex
	agents map[string]*AgentMetrics
}

// NewInternalRecorder returns an empty in-memory recorder.
func NewInternalRecorder() *InternalRecorder {
	return &InternalRecorder{agents: make(map[string]*AgentMetrics)}
}

func (r *InternalRecorder) entry(agentID string) *AgentMetrics {
	m, ok := r.agents[agentID]
	if !ok {
		m = &AgentMetrics{}
		r.agents[agentID] = m
	}
	return m
}

// ObserveSuccess records a successful agent execution.
func (r *InternalRecorder) ObserveSuccess(agentID, _ string, duration time.Duration, usage Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.entry(agentID)
	m.PromptTokens += int64(usage.PromptTokens)
	m.CompletionTokens += int64(usage.CompletionTokens)
	m.SuccessCount++
	m.TotalLatency += duration
	m.LastUpdated = time.Now()
}

// ObserveFailure records a failed agent execution.
func (r *InternalRecorder) ObserveFailure(agentID, _, _ string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.entry(agentID)
	m.FailureCount++
	m.TotalLatency += duration
	m.LastUpdated = time.Now()
}

// Snapshot returns a copy of the current per-agent metrics.
func (r *InternalRecorder) Snapshot() map[string]AgentMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]AgentMetrics, len(r.agents))
	for id, m := range r.agents {
		out[id] = *m
	}
	return out
}
