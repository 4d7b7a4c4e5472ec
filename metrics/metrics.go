// Package metrics provides observability hooks for the sync engine.
package metrics

import "time"

// Collector provides hooks for collecting sync engine metrics
type Collector interface {
	// RecordCycleDuration records how long a drain cycle took
	RecordCycleDuration(duration time.Duration)

	// RecordOperationApplied records a successfully applied operation
	RecordOperationApplied(entityType string)

	// RecordOperationFailed records a failed apply attempt
	RecordOperationFailed(entityType string)

	// SetPendingOperations records the current pending pool size
	SetPendingOperations(n int)

	// SetFailedOperations records the current permanently-failed pool size
	SetFailedOperations(n int)
}

// NoOpCollector is a default implementation that does nothing
type NoOpCollector struct{}

func (n *NoOpCollector) RecordCycleDuration(duration time.Duration) {}
func (n *NoOpCollector) RecordOperationApplied(entityType string)   {}
func (n *NoOpCollector) RecordOperationFailed(entityType string)    {}
func (n *NoOpCollector) SetPendingOperations(count int)             {}
func (n *NoOpCollector) SetFailedOperations(count int)              {}
