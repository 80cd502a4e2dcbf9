package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	triageOutcomes map[string]int64
	slaBreaches    int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		triageOutcomes: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTriageOutcome counts committed triage decisions by outcome.
func (m *Metrics) RecordTriageOutcome(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triageOutcomes[outcome]++
}

// RecordSLABreach counts appended SLA breach events.
func (m *Metrics) RecordSLABreach() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaBreaches++
}

// Snapshot returns a copy of all counters for the metrics endpoint.
func (m *Metrics) Snapshot() map[string]any {
	if m == nil {
		return map[string]any{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	requests := make(map[string]int64, len(m.requestCount))
	for key, value := range m.requestCount {
		requests[key] = value
	}
	errors := make(map[string]int64, len(m.errorCount))
	for key, value := range m.errorCount {
		errors[key] = value
	}
	outcomes := make(map[string]int64, len(m.triageOutcomes))
	for key, value := range m.triageOutcomes {
		outcomes[key] = value
	}
	return map[string]any{
		"requests":        requests,
		"errors":          errors,
		"triage_outcomes": outcomes,
		"sla_breaches":    m.slaBreaches,
	}
}
