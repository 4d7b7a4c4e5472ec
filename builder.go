package opqueue

import (
	"fmt"
	"time"

	"github.com/inventakit/go-opqueue/logging"
	"github.com/inventakit/go-opqueue/metrics"
)

// Builder provides a fluent interface for wiring the queue and orchestrator.
type Builder struct {
	store        OperationStore
	connectivity ConnectivityMonitor
	appliers     ApplierRegistry
	options      *Options
	logger       *logging.Logger
}

// NewBuilder creates a new builder with default options.
func NewBuilder() *Builder {
	return &Builder{
		appliers: make(ApplierRegistry),
		options:  &Options{},
	}
}

// WithStore sets the durable OperationStore backing the queue.
func (b *Builder) WithStore(store OperationStore) *Builder {
	b.store = store
	return b
}

// WithConnectivity sets the reachability signal the orchestrator reacts to.
func (b *Builder) WithConnectivity(monitor ConnectivityMonitor) *Builder {
	b.connectivity = monitor
	return b
}

// WithApplier registers the remote apply function for one entity type.
func (b *Builder) WithApplier(entityType EntityType, apply ApplyFunc) *Builder {
	b.appliers[entityType] = apply
	return b
}

// WithCoolDown sets how long a Completed state lingers before reverting to Idle.
func (b *Builder) WithCoolDown(d time.Duration) *Builder {
	b.options.CoolDown = d
	return b
}

// WithSettleDelay sets the wait between a reconnect and the auto-sync it triggers.
func (b *Builder) WithSettleDelay(d time.Duration) *Builder {
	b.options.SettleDelay = d
	return b
}

// WithOperationDelay sets the pause between operations within a cycle.
func (b *Builder) WithOperationDelay(d time.Duration) *Builder {
	b.options.OperationDelay = d
	return b
}

// WithMetrics sets the metrics collector for cycle measurements.
func (b *Builder) WithMetrics(collector metrics.Collector) *Builder {
	b.options.Metrics = collector
	return b
}

// WithLogger sets the logger used by both the queue and the orchestrator.
func (b *Builder) WithLogger(logger *logging.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and constructs the engine. The queue
// restores its pools from the store; the orchestrator subscribes to
// connectivity transitions.
func (b *Builder) Build() (*Orchestrator, error) {
	if b.connectivity == nil {
		return nil, fmt.Errorf("connectivity monitor is required")
	}
	if len(b.appliers) == 0 {
		return nil, fmt.Errorf("at least one applier is required")
	}
	if _, ok := b.appliers[EntityAudit]; ok {
		return nil, fmt.Errorf("audit entities are exempt from sync, no applier may be registered for them")
	}

	var queueLogger *logging.Logger
	if b.logger != nil {
		queueLogger = b.logger.WithComponent(logging.Component("queue"))
		b.options.Logger = b.logger.WithComponent(logging.Component("orchestrator"))
	}

	queue := NewQueue(b.store, queueLogger)
	return NewOrchestrator(queue, b.connectivity, b.appliers, b.options), nil
}
