// Package opqueue implements an offline mutation queue and synchronization
// engine for clients of a remote document store. Producers enqueue intended
// writes while disconnected; the queue records them durably with
// deduplication, priority ordering and retry bookkeeping, and the
// orchestrator later drains them against the remote store with bounded
// retries and exponential backoff.
package opqueue

import (
	"context"
	"encoding/json"
	"time"
)

// OperationStore provides durable persistence for the queue's two pools.
// Implementations must persist both lists atomically so a crash can never
// leave an operation duplicated across pools on reload.
type OperationStore interface {
	// Save persists both pools, replacing whatever was stored before
	Save(ctx context.Context, pending, failed []Operation) error

	// Load retrieves both pools as they were last saved
	Load(ctx context.Context) (pending, failed []Operation, err error)

	// Close closes the store and releases resources
	Close() error
}

// ConnectivityMonitor exposes the reachability signal the orchestrator acts
// on. Implementations can probe the network, wrap a platform signal, etc.
type ConnectivityMonitor interface {
	// IsReachable reports whether the remote store is currently reachable
	IsReachable() bool

	// Subscribe registers a handler invoked on every reachability
	// transition (present->absent and absent->present only)
	Subscribe(handler func(reachable bool))
}

// ApplyFunc performs the actual remote create/update/delete for one entity
// type. Any returned error is treated as a retryable failure.
type ApplyFunc func(ctx context.Context, kind Kind, entityID string, payload json.RawMessage) error

// ApplierRegistry maps entity types to their remote apply functions.
// EntityAudit needs no entry; audit operations are never dispatched.
type ApplierRegistry map[EntityType]ApplyFunc

// SyncPhase is the orchestrator's current activity.
type SyncPhase string

const (
	PhaseIdle      SyncPhase = "idle"
	PhaseSyncing   SyncPhase = "syncing"
	PhaseCompleted SyncPhase = "completed"
	PhaseFailed    SyncPhase = "failed"
)

// SyncState is the published, observer-readable snapshot of a sync cycle.
// Only the orchestrator mutates it; readers always see a fully-formed copy.
type SyncState struct {
	// Phase is the current lifecycle phase
	Phase SyncPhase

	// Reason describes why the cycle failed (set only when Phase is PhaseFailed)
	Reason string

	// Progress is the fraction of the cycle's snapshot processed so far (0..1)
	Progress float64

	// Current describes the operation being applied, for UI display
	Current string
}

// StateListener receives every published SyncState change.
type StateListener func(SyncState)

// SyncResult summarizes one completed drain cycle.
type SyncResult struct {
	// Total is the number of operations in the cycle's snapshot
	Total int

	// Succeeded is the number of operations applied and removed
	Succeeded int

	// Failed is the number of operations whose apply attempt failed
	Failed int

	// StartTime is when the cycle began
	StartTime time.Time

	// Duration is how long the cycle took
	Duration time.Duration
}

// Statistics is a point-in-time summary of the queue's pools.
type Statistics struct {
	PendingCount  int                `json:"pending_count"`
	FailedCount   int                `json:"failed_count"`
	CountByType   map[EntityType]int `json:"count_by_type"`
	CountByEntity map[string]int     `json:"count_by_entity"`
}
