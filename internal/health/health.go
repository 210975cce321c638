// Package health tracks the health of the external services mcp-kubedebug
// talks to and aggregates the errors their calls produce.
package health

import (
	"fmt"
	"sync"
	"time"
)

// failureThreshold is how many consecutive failures mark a service
// unhealthy.
const failureThreshold = 3

// ServiceStatus is a point-in-time view of one service.
type ServiceStatus struct {
	Name                string    `json:"name"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastObserved        time.Time `json:"last_observed,omitempty"`
}

type serviceState struct {
	healthy             bool
	consecutiveFailures int
	lastObserved        time.Time
}

// Tracker records success and failure observations per service.
type Tracker struct {
	mu       sync.Mutex
	services map[string]*serviceState
}

// NewTracker creates a tracker with the given services, all initially
// healthy.
func NewTracker(services ...string) *Tracker {
	t := &Tracker{services: make(map[string]*serviceState, len(services))}
	for _, name := range services {
		t.services[name] = &serviceState{healthy: true}
	}
	return t
}

// Observe records the outcome of one interaction with a service. A nil err
// resets the failure streak; a non-nil err extends it and marks the service
// unhealthy once the streak reaches the threshold.
func (t *Tracker) Observe(service string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.services[service]
	if !ok {
		state = &serviceState{healthy: true}
		t.services[service] = state
	}
	state.lastObserved = time.Now()

	if err == nil {
		state.healthy = true
		state.consecutiveFailures = 0
		return
	}

	state.consecutiveFailures++
	if state.consecutiveFailures >= failureThreshold {
		state.healthy = false
	}
}

// Healthy reports whether the service is currently considered healthy.
// Unknown services are healthy until observed otherwise.
func (t *Tracker) Healthy(service string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.services[service]
	if !ok {
		return true
	}
	return state.healthy
}

// Snapshot returns the current status of every tracked service.
func (t *Tracker) Snapshot() []ServiceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	statuses := make([]ServiceStatus, 0, len(t.services))
	for name, state := range t.services {
		statuses = append(statuses, ServiceStatus{
			Name:                name,
			Healthy:             state.healthy,
			ConsecutiveFailures: state.consecutiveFailures,
			LastObserved:        state.lastObserved,
		})
	}
	return statuses
}

// maxRecordsPerOperation caps the history kept for each operation.
const maxRecordsPerOperation = 1000

// ErrorRecord is one recorded failure.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
}

// OperationSummary aggregates the recorded failures of one operation.
type OperationSummary struct {
	Count       int            `json:"count"`
	RecentCount int            `json:"recent_count"`
	ErrorTypes  map[string]int `json:"error_types,omitempty"`
	MostCommon  string         `json:"most_common,omitempty"`
}

// Summary aggregates failures across all operations.
type Summary struct {
	TotalErrors         int                         `json:"total_errors"`
	OperationsWithError int                         `json:"operations_with_errors"`
	Operations          map[string]OperationSummary `json:"operations,omitempty"`
}

// Aggregator records errors per operation for the diagnostics tool.
type Aggregator struct {
	mu     sync.Mutex
	errors map[string][]ErrorRecord
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{errors: make(map[string][]ErrorRecord)}
}

// Record stores one failure for the operation, trimming history beyond the
// per-operation cap.
func (a *Aggregator) Record(operation string, err error) {
	if err == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	records := append(a.errors[operation], ErrorRecord{
		Timestamp: time.Now(),
		ErrorType: fmt.Sprintf("%T", err),
		Message:   err.Error(),
	})
	if len(records) > maxRecordsPerOperation {
		records = records[len(records)-maxRecordsPerOperation:]
	}
	a.errors[operation] = records
}

// Summarize returns the aggregate view across all operations.
func (a *Aggregator) Summarize() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := Summary{Operations: make(map[string]OperationSummary, len(a.errors))}
	for op, records := range a.errors {
		summary.TotalErrors += len(records)
		summary.Operations[op] = analyze(records)
	}
	summary.OperationsWithError = len(a.errors)
	return summary
}

// SummarizeOperation returns the aggregate view for one operation.
func (a *Aggregator) SummarizeOperation(operation string) OperationSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return analyze(a.errors[operation])
}

func analyze(records []ErrorRecord) OperationSummary {
	if len(records) == 0 {
		return OperationSummary{}
	}

	summary := OperationSummary{
		Count:      len(records),
		ErrorTypes: make(map[string]int),
	}

	cutoff := time.Now().Add(-time.Hour)
	for _, rec := range records {
		summary.ErrorTypes[rec.ErrorType]++
		if rec.Timestamp.After(cutoff) {
			summary.RecentCount++
		}
	}

	best := 0
	for typ, count := range summary.ErrorTypes {
		if count > best {
			best = count
			summary.MostCommon = typ
		}
	}
	return summary
}
