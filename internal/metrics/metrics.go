package metrics

import "sync"

const (
	BatchesSubmitted    = "batches_submitted"
	BatchesRejected     = "batches_rejected"
	JobsSucceeded       = "jobs_succeeded"
	JobsFailed          = "jobs_failed"
	ItemsProcessed      = "items_processed"
	ItemAttemptsRetried = "item_attempts_retried"
	ProfilesDegraded    = "profiles_degraded"
	DuplicateCompletion = "duplicate_completions"
	LLMRequests         = "llm_requests"
	LLMRequestsRetried  = "llm_requests_retried"
)

var known = []string{
	BatchesSubmitted,
	BatchesRejected,
	JobsSucceeded,
	JobsFailed,
	ItemsProcessed,
	ItemAttemptsRetried,
	ProfilesDegraded,
	DuplicateCompletion,
	LLMRequests,
	LLMRequestsRetried,
}

// Metrics holds in-process counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]int64
}

func New() *Metrics {
	counters := make(map[string]int64, len(known))
	for _, name := range known {
		counters[name] = 0
	}
	return &Metrics{counters: counters}
}

// Inc adds one to the named counter.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}
