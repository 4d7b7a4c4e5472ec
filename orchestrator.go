package opqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inventakit/go-opqueue/backoff"
	"github.com/inventakit/go-opqueue/errors"
	"github.com/inventakit/go-opqueue/logging"
	"github.com/inventakit/go-opqueue/metrics"
)

// Options configures the orchestrator's timing and observability hooks.
type Options struct {
	// CoolDown is how long a Completed state lingers before auto-reverting
	// to Idle
	CoolDown time.Duration

	// SettleDelay is the wait after a reconnect before auto-sync fires, to
	// avoid racing a flaky link
	SettleDelay time.Duration

	// OperationDelay is an optional pause between operations within a
	// cycle, keeping the remote store unsaturated. Negative disables the
	// pause entirely.
	OperationDelay time.Duration

	// Metrics receives cycle and per-operation measurements
	Metrics metrics.Collector

	// Logger overrides the default component logger
	Logger *logging.Logger
}

func (o *Options) setDefaults() {
	if o.CoolDown == 0 {
		o.CoolDown = 3 * time.Second
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = 2 * time.Second
	}
	if o.OperationDelay == 0 {
		o.OperationDelay = 100 * time.Millisecond
	}
	if o.OperationDelay < 0 {
		o.OperationDelay = 0
	}
	if o.Metrics == nil {
		o.Metrics = &metrics.NoOpCollector{}
	}
	if o.Logger == nil {
		o.Logger = logging.WithComponent(logging.Component("orchestrator"))
	}
}

// Orchestrator drives drain cycles of the queue against the remote store.
// Cycles never overlap; the published SyncState is single-writer and safe to
// read from a UI thread.
type Orchestrator struct {
	queue        *Queue
	connectivity ConnectivityMonitor
	appliers     ApplierRegistry
	opts         Options
	logger       *logging.Logger

	mu        sync.RWMutex
	state     SyncState
	syncing   bool
	cancelled bool
	closed    bool
	listeners []StateListener

	timerMu       sync.Mutex
	coolDownTimer *time.Timer
	settleTimer   *time.Timer
}

// NewOrchestrator wires the orchestrator to its collaborators and subscribes
// to connectivity transitions for auto-sync. If opts is nil, defaults apply.
func NewOrchestrator(queue *Queue, connectivity ConnectivityMonitor, appliers ApplierRegistry, opts *Options) *Orchestrator {
	resolved := Options{}
	if opts != nil {
		resolved = *opts
	}
	resolved.setDefaults()

	o := &Orchestrator{
		queue:        queue,
		connectivity: connectivity,
		appliers:     appliers,
		opts:         resolved,
		logger:       resolved.Logger,
		state:        SyncState{Phase: PhaseIdle},
	}

	connectivity.Subscribe(o.handleConnectivityChange)
	return o
}

// Queue returns the queue this orchestrator drains.
func (o *Orchestrator) Queue() *Queue {
	return o.queue
}

// State returns the current published sync state snapshot.
func (o *Orchestrator) State() SyncState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// IsSyncing reports whether a drain cycle is in flight.
func (o *Orchestrator) IsSyncing() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.syncing
}

// Subscribe registers a listener for published state changes. Listeners are
// invoked on their own goroutines and must not block on the orchestrator.
func (o *Orchestrator) Subscribe(listener StateListener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, listener)
}

// SyncPendingOperations drives one drain cycle. It never returns an error:
// connectivity problems surface as a Failed state, apply problems as retry
// bookkeeping on the affected operations.
func (o *Orchestrator) SyncPendingOperations(ctx context.Context) SyncResult {
	o.mu.Lock()
	if o.syncing || o.closed {
		o.mu.Unlock()
		o.logger.Debug("sync already in progress, ignoring trigger")
		return SyncResult{}
	}
	if !o.connectivity.IsReachable() {
		o.mu.Unlock()
		o.logger.Info("sync skipped, no connection")
		o.setState(SyncState{Phase: PhaseFailed, Reason: "no connection"})
		return SyncResult{}
	}
	o.syncing = true
	o.cancelled = false
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.syncing = false
		o.mu.Unlock()
	}()

	return o.drain(ctx)
}

func (o *Orchestrator) drain(ctx context.Context) SyncResult {
	snapshot := o.queue.PendingOperations()
	result := SyncResult{
		Total:     len(snapshot),
		StartTime: time.Now(),
	}

	if result.Total == 0 {
		o.logger.Debug("nothing to sync")
		o.setState(SyncState{Phase: PhaseCompleted, Progress: 1})
		o.scheduleCoolDownReset()
		return result
	}

	o.logger.Info("sync cycle started", slog.Int("total", result.Total))
	o.setState(SyncState{Phase: PhaseSyncing})

	processed := 0
	for i, op := range snapshot {
		if o.isCancelled() || ctx.Err() != nil {
			o.logger.Info("sync cycle cancelled",
				slog.Int("processed", processed),
				slog.Int("total", result.Total),
			)
			result.Duration = time.Since(result.StartTime)
			return result
		}

		// The link can drop mid-cycle; remaining operations stay pending
		// for the next reconnect.
		if !o.connectivity.IsReachable() {
			o.logger.Warn("connection lost mid-cycle, stopping early",
				slog.Int("processed", processed),
				slog.Int("total", result.Total),
			)
			result.Duration = time.Since(result.StartTime)
			o.setState(SyncState{Phase: PhaseFailed, Reason: "connection lost"})
			o.recordCycle(result)
			return result
		}

		switch {
		case op.EntityType == EntityAudit:
			// Audits are durable at creation time and never synced.
			processed++

		case !backoff.Eligible(op.RetryCount, op.LastRetryAt, time.Now()):
			o.logger.Debug("operation still inside backoff window, skipping",
				slog.String("id", op.ID),
				slog.Int("retry_count", op.RetryCount),
			)
			processed++

		default:
			o.applyOne(ctx, op, &result)
			processed++
		}

		o.publishProgress(processed, result.Total, describeOperation(op))

		if o.opts.OperationDelay > 0 && i < len(snapshot)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(o.opts.OperationDelay):
			}
		}
	}

	result.Duration = time.Since(result.StartTime)

	if result.Failed > 0 && result.Succeeded == 0 {
		o.setState(SyncState{Phase: PhaseFailed, Reason: "all operations failed", Progress: 1})
	} else {
		// Partial success still means the cycle finished.
		o.setState(SyncState{Phase: PhaseCompleted, Progress: 1})
		o.scheduleCoolDownReset()
	}

	o.logger.Info("sync cycle finished",
		slog.Int("total", result.Total),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", result.Duration),
	)
	o.recordCycle(result)
	return result
}

func (o *Orchestrator) applyOne(ctx context.Context, op Operation, result *SyncResult) {
	apply, ok := o.appliers[op.EntityType]
	if !ok {
		err := errors.NewValidationError(errors.OpApply,
			fmt.Errorf("no applier registered for entity type %q", op.EntityType))
		o.logger.LogError(ctx, err, "cannot dispatch operation",
			slog.String("id", op.ID))
		o.queue.MarkFailed(ctx, op.ID, err)
		result.Failed++
		o.opts.Metrics.RecordOperationFailed(string(op.EntityType))
		return
	}

	if err := apply(ctx, op.Kind, op.EntityID, op.Payload); err != nil {
		o.logger.LogError(ctx, errors.NewApplyError(errors.OpApply, err),
			"apply attempt failed",
			slog.String("id", op.ID),
			slog.String("entity_type", string(op.EntityType)),
			slog.String("entity_id", op.EntityID),
		)
		o.queue.MarkFailed(ctx, op.ID, err)
		result.Failed++
		o.opts.Metrics.RecordOperationFailed(string(op.EntityType))
		return
	}

	o.queue.MarkCompleted(ctx, op.ID)
	result.Succeeded++
	o.opts.Metrics.RecordOperationApplied(string(op.EntityType))
}

// Cancel requests cooperative cancellation of the in-flight cycle. The
// current apply attempt runs to completion; no further operations are
// scheduled and the state returns to Idle. Already-recorded completions and
// failures are not rolled back.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if !o.syncing {
		o.mu.Unlock()
		return
	}
	o.cancelled = true
	o.mu.Unlock()

	o.logger.Info("cancel requested")
	o.setState(SyncState{Phase: PhaseIdle})
}

// Close stops auto-sync scheduling and pending state timers.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.cancelled = true
	o.mu.Unlock()

	o.timerMu.Lock()
	if o.coolDownTimer != nil {
		o.coolDownTimer.Stop()
	}
	if o.settleTimer != nil {
		o.settleTimer.Stop()
	}
	o.timerMu.Unlock()
	return nil
}

func (o *Orchestrator) handleConnectivityChange(reachable bool) {
	if !reachable {
		// Informational only; an in-flight cycle notices on its own.
		o.logger.Info("connectivity lost")
		return
	}

	o.mu.RLock()
	closed := o.closed
	o.mu.RUnlock()
	if closed {
		return
	}

	o.logger.Info("connectivity restored, scheduling sync",
		slog.Duration("settle_delay", o.opts.SettleDelay))

	o.timerMu.Lock()
	if o.settleTimer != nil {
		o.settleTimer.Stop()
	}
	o.settleTimer = time.AfterFunc(o.opts.SettleDelay, func() {
		o.mu.RLock()
		closed := o.closed
		o.mu.RUnlock()
		if closed {
			return
		}
		o.SyncPendingOperations(context.Background())
	})
	o.timerMu.Unlock()
}

func (o *Orchestrator) isCancelled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cancelled
}

func (o *Orchestrator) setState(state SyncState) {
	o.mu.Lock()
	o.state = state
	listeners := make([]StateListener, len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	o.notify(listeners, state)
}

func (o *Orchestrator) publishProgress(processed, total int, current string) {
	o.mu.Lock()
	if o.state.Phase != PhaseSyncing {
		o.mu.Unlock()
		return
	}
	o.state.Progress = float64(processed) / float64(total)
	o.state.Current = current
	state := o.state
	listeners := make([]StateListener, len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	o.notify(listeners, state)
}

func (o *Orchestrator) notify(listeners []StateListener, state SyncState) {
	for _, listener := range listeners {
		go func(l StateListener) {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("state listener panicked",
						slog.Any("panic", r))
				}
			}()
			l(state)
		}(listener)
	}
}

// scheduleCoolDownReset reverts a Completed state to Idle after the
// configured cool-down, unless something else moved the state first.
func (o *Orchestrator) scheduleCoolDownReset() {
	o.timerMu.Lock()
	defer o.timerMu.Unlock()

	if o.coolDownTimer != nil {
		o.coolDownTimer.Stop()
	}
	o.coolDownTimer = time.AfterFunc(o.opts.CoolDown, func() {
		o.mu.Lock()
		if o.closed || o.syncing || o.state.Phase != PhaseCompleted {
			o.mu.Unlock()
			return
		}
		o.state = SyncState{Phase: PhaseIdle}
		state := o.state
		listeners := make([]StateListener, len(o.listeners))
		copy(listeners, o.listeners)
		o.mu.Unlock()

		o.notify(listeners, state)
	})
}

func (o *Orchestrator) recordCycle(result SyncResult) {
	o.opts.Metrics.RecordCycleDuration(result.Duration)
	o.opts.Metrics.SetPendingOperations(o.queue.PendingCount())
	o.opts.Metrics.SetFailedOperations(len(o.queue.FailedOperations()))
}

func describeOperation(op Operation) string {
	return fmt.Sprintf("%s %s/%s", op.Kind, op.EntityType, op.EntityID)
}
