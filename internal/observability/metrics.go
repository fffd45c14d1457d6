package observability

import (
	"sync"
)

// IntakeOutcome labels what happened to one inbound item.
type IntakeOutcome string

const (
	OutcomeCreated   IntakeOutcome = "created"
	OutcomeContinued IntakeOutcome = "continued"
	OutcomeNeedsInfo IntakeOutcome = "needs_info"
	OutcomeFollowUp  IntakeOutcome = "follow_up"
	OutcomeIgnored   IntakeOutcome = "ignored"
	OutcomeFailed    IntakeOutcome = "failed"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	intakeCount   map[string]int64
	notifyCount   map[string]int64
	escalateCount int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		intakeCount: make(map[string]int64),
		notifyCount: make(map[string]int64),
	}
}

// RecordIntake increments counters for processed inbound items.
func (m *Metrics) RecordIntake(channel string, outcome IntakeOutcome) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intakeCount[channel+"|"+string(outcome)]++
}

// RecordNotification increments counters for dispatched notifications.
func (m *Metrics) RecordNotification(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyCount[eventType]++
}

// RecordEscalation counts SLA-triggered escalations.
func (m *Metrics) RecordEscalation() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalateCount++
}

// Snapshot returns a copy of all counters for the readiness endpoint.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.intakeCount)+len(m.notifyCount)+1)
	for k, v := range m.intakeCount {
		out["intake|"+k] = v
	}
	for k, v := range m.notifyCount {
		out["notify|"+k] = v
	}
	out["escalations"] = m.escalateCount
	return out
}
