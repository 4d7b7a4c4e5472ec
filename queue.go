package opqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/inventakit/go-opqueue/backoff"
	"github.com/inventakit/go-opqueue/errors"
	"github.com/inventakit/go-opqueue/logging"
)

// Queue is the durable, deduplicated, priority-ordered store of pending
// mutations. All mutations to its pools are serialized behind one mutex so
// concurrent producers never race; none of its operations block on network
// I/O. The in-memory pools are authoritative for the process lifetime:
// persistence failures are logged, never raised.
type Queue struct {
	mu      sync.Mutex
	pending []Operation
	failed  []Operation

	store  OperationStore
	logger *logging.Logger

	// now is stubbed in tests to make backoff windows deterministic
	now func() time.Time
}

// NewQueue builds a Queue backed by the given store and restores both pools
// from it. A nil store leaves the queue memory-only. Load failures are
// treated as an empty queue, not a fatal error.
func NewQueue(store OperationStore, logger *logging.Logger) *Queue {
	if logger == nil {
		logger = logging.WithComponent(logging.Component("queue"))
	}

	q := &Queue{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	q.restore()
	return q
}

func (q *Queue) restore() {
	if q.store == nil {
		return
	}

	pending, failed, err := q.store.Load(context.Background())
	if err != nil {
		q.logger.LogError(context.Background(),
			errors.NewStorageError(errors.OpRestore, err),
			"failed to restore persisted operations, starting empty")
		return
	}

	q.pending = pending
	q.failed = failed
	q.logger.Info("restored persisted operations",
		slog.Int("pending", len(pending)),
		slog.Int("failed", len(failed)),
	)
}

// persistLocked writes both pools through the store. Callers must hold q.mu.
// Errors are logged and swallowed; the in-memory pools remain the source of
// truth until the next successful persist.
func (q *Queue) persistLocked(ctx context.Context) {
	if q.store == nil {
		return
	}

	if err := q.store.Save(ctx, q.pending, q.failed); err != nil {
		q.logger.LogError(ctx,
			errors.NewStorageError(errors.OpPersist, err),
			"failed to persist operation pools, continuing in-memory",
			slog.Int("pending", len(q.pending)),
			slog.Int("failed", len(q.failed)),
		)
	}
}

// Enqueue adds op to the pending pool. If a pending operation already exists
// for the same (entityType, entityId, kind), op overwrites its content in
// place: payload, timestamp and priority are replaced, retry and backoff
// bookkeeping are kept. A Delete supersedes any pending Create or Update for
// the same entity.
func (q *Queue) Enqueue(ctx context.Context, op Operation) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.enqueueLocked(ctx, op)
	q.persistLocked(ctx)
}

// EnqueueNew builds an operation from producer inputs, enqueues it and
// returns the queued operation.
func (q *Queue) EnqueueNew(ctx context.Context, kind Kind, entityType EntityType, entityID string, payload json.RawMessage, priority int) Operation {
	op := NewOperation(kind, entityType, entityID, payload, priority)
	q.Enqueue(ctx, op)
	return op
}

// EnqueueBatch enqueues each operation in order under a single persist.
func (q *Queue) EnqueueBatch(ctx context.Context, ops []Operation) {
	if len(ops) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, op := range ops {
		q.enqueueLocked(ctx, op)
	}
	q.persistLocked(ctx)
}

func (q *Queue) enqueueLocked(ctx context.Context, op Operation) {
	key := op.key()
	for i := range q.pending {
		if q.pending[i].key() == key {
			// Content-only replacement: the slot keeps its id, queue
			// position and retry bookkeeping.
			q.pending[i].Payload = op.Payload
			q.pending[i].CreatedAt = op.CreatedAt
			q.pending[i].Priority = op.Priority
			q.logger.Debug("replaced pending operation in place",
				slog.String("id", q.pending[i].ID),
				slog.String("entity_type", string(op.EntityType)),
				slog.String("entity_id", op.EntityID),
				slog.String("kind", string(op.Kind)),
			)
			return
		}
	}

	if op.Kind == KindDelete {
		q.dropSupersededLocked(op)
	}

	q.pending = append(q.pending, op)
	q.logger.Debug("enqueued operation",
		slog.String("id", op.ID),
		slog.String("entity_type", string(op.EntityType)),
		slog.String("entity_id", op.EntityID),
		slog.String("kind", string(op.Kind)),
		slog.Int("priority", op.Priority),
	)
}

// dropSupersededLocked removes pending Create/Update operations for the
// entity a Delete now targets; applying them remotely would be wasted work.
func (q *Queue) dropSupersededLocked(del Operation) {
	kept := q.pending[:0]
	for _, op := range q.pending {
		if op.EntityType == del.EntityType && op.EntityID == del.EntityID &&
			(op.Kind == KindCreate || op.Kind == KindUpdate) {
			q.logger.Debug("delete supersedes pending operation",
				slog.String("superseded_id", op.ID),
				slog.String("kind", string(op.Kind)),
			)
			continue
		}
		kept = append(kept, op)
	}
	q.pending = kept
}

// DequeueNext previews the next operation eligible for a single-operation
// consumer: pending sorted by priority (desc) then creation time (asc), first
// entry whose backoff window has elapsed. It removes nothing. Returns nil if
// the pool is empty or every operation is still inside its backoff window.
func (q *Queue) DequeueNext() *Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	candidates := make([]Operation, len(q.pending))
	copy(candidates, q.pending)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	now := q.now()
	for i := range candidates {
		if backoff.Eligible(candidates[i].RetryCount, candidates[i].LastRetryAt, now) {
			op := candidates[i]
			return &op
		}
	}
	return nil
}

// PendingOperations returns the pending pool ordered by creation time, the
// user-facing order (drain order is DequeueNext's concern).
func (q *Queue) PendingOperations() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := make([]Operation, len(q.pending))
	copy(ops, q.pending)
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})
	return ops
}

// PendingCount returns the number of pending operations.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// HasPending reports whether any operation is waiting to be drained.
func (q *Queue) HasPending() bool {
	return q.PendingCount() > 0
}

// OperationsForType returns pending operations targeting the given entity type.
func (q *Queue) OperationsForType(entityType EntityType) []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ops []Operation
	for _, op := range q.pending {
		if op.EntityType == entityType {
			ops = append(ops, op)
		}
	}
	return ops
}

// OperationsForEntity returns pending operations targeting one record.
func (q *Queue) OperationsForEntity(entityType EntityType, entityID string) []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ops []Operation
	for _, op := range q.pending {
		if op.EntityType == entityType && op.EntityID == entityID {
			ops = append(ops, op)
		}
	}
	return ops
}

// FailedOperations returns the permanently-failed pool.
func (q *Queue) FailedOperations() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := make([]Operation, len(q.failed))
	copy(ops, q.failed)
	return ops
}

// MarkCompleted removes a successfully applied operation from the pending
// pool. An absent id is a logged no-op; that is expected when a cancelled
// cycle races a completion.
func (q *Queue) MarkCompleted(ctx context.Context, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.pendingIndexLocked(id)
	if idx < 0 {
		q.logger.Debug("mark completed for unknown operation, ignoring",
			slog.String("id", id))
		return
	}

	q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
	q.logger.Info("operation completed", slog.String("id", id))
	q.persistLocked(ctx)
}

// MarkFailed records a failed apply attempt: retry count and timestamp are
// advanced and the error text captured. Once the retry ceiling is reached the
// operation moves to the permanently-failed pool.
func (q *Queue) MarkFailed(ctx context.Context, id string, applyErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.pendingIndexLocked(id)
	if idx < 0 {
		q.logger.Debug("mark failed for unknown operation, ignoring",
			slog.String("id", id))
		return
	}

	now := q.now()
	q.pending[idx].RetryCount++
	q.pending[idx].LastRetryAt = &now
	if applyErr != nil {
		q.pending[idx].LastError = applyErr.Error()
	}

	if q.pending[idx].RetryCount >= backoff.MaxAttempts {
		op := q.pending[idx]
		q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
		q.failed = append(q.failed, op)
		q.logger.Warn("operation exhausted retries, moved to failed pool",
			slog.String("id", op.ID),
			slog.String("entity_type", string(op.EntityType)),
			slog.String("entity_id", op.EntityID),
			slog.Int("retry_count", op.RetryCount),
			slog.String("last_error", op.LastError),
		)
	} else {
		q.logger.Info("operation failed, will retry",
			slog.String("id", id),
			slog.Int("retry_count", q.pending[idx].RetryCount),
			slog.Duration("next_attempt_in", backoff.Delay(q.pending[idx].RetryCount)),
		)
	}

	q.persistLocked(ctx)
}

// Remove abandons a pending operation without marking it completed or failed.
func (q *Queue) Remove(ctx context.Context, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.pendingIndexLocked(id)
	if idx < 0 {
		return
	}

	q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
	q.logger.Info("operation removed", slog.String("id", id))
	q.persistLocked(ctx)
}

// ClearAll empties the pending pool.
func (q *Queue) ClearAll(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = nil
	q.logger.Info("pending pool cleared")
	q.persistLocked(ctx)
}

// ClearFailed empties the permanently-failed pool.
func (q *Queue) ClearFailed(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.failed = nil
	q.logger.Info("failed pool cleared")
	q.persistLocked(ctx)
}

// RetryFailed resurrects a permanently-failed operation: retry bookkeeping is
// reset and the operation returns to the pending pool, immediately eligible.
func (q *Queue) RetryFailed(ctx context.Context, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.failed {
		if q.failed[i].ID == id {
			op := q.failed[i]
			op.RetryCount = 0
			op.LastRetryAt = nil
			op.LastError = ""

			q.failed = append(q.failed[:i], q.failed[i+1:]...)
			q.pending = append(q.pending, op)
			q.logger.Info("failed operation resurrected for retry",
				slog.String("id", id))
			q.persistLocked(ctx)
			return
		}
	}

	q.logger.Debug("retry failed for unknown operation, ignoring",
		slog.String("id", id))
}

// Statistics returns a snapshot of pool sizes and pending counts per entity
// type and per entity.
func (q *Queue) Statistics() Statistics {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Statistics{
		PendingCount:  len(q.pending),
		FailedCount:   len(q.failed),
		CountByType:   make(map[EntityType]int),
		CountByEntity: make(map[string]int),
	}

	for _, op := range q.pending {
		stats.CountByType[op.EntityType]++
		stats.CountByEntity[string(op.EntityType)+"/"+op.EntityID]++
	}
	return stats
}

func (q *Queue) pendingIndexLocked(id string) int {
	for i := range q.pending {
		if q.pending[i].ID == id {
			return i
		}
	}
	return -1
}
