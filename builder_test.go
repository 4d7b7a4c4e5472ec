package opqueue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopApply(ctx context.Context, kind Kind, entityID string, payload json.RawMessage) error {
	return nil
}

func TestBuilderRequiresConnectivity(t *testing.T) {
	_, err := NewBuilder().
		WithApplier(EntityKit, noopApply).
		Build()
	assert.ErrorContains(t, err, "connectivity monitor is required")
}

func TestBuilderRequiresAppliers(t *testing.T) {
	_, err := NewBuilder().
		WithConnectivity(newMockMonitor(true)).
		Build()
	assert.ErrorContains(t, err, "at least one applier is required")
}

func TestBuilderRejectsAuditApplier(t *testing.T) {
	_, err := NewBuilder().
		WithConnectivity(newMockMonitor(true)).
		WithApplier(EntityAudit, noopApply).
		Build()
	assert.ErrorContains(t, err, "audit")
}

func TestBuilderBuildsWorkingEngine(t *testing.T) {
	store := &mockStore{
		pending: []Operation{NewOperation(KindCreate, EntityKit, "k1", nil, 0)},
	}

	o, err := NewBuilder().
		WithStore(store).
		WithConnectivity(newMockMonitor(true)).
		WithApplier(EntityKit, noopApply).
		WithOperationDelay(-1).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })

	assert.Equal(t, 1, o.Queue().PendingCount(), "queue restored from store")
	assert.Equal(t, PhaseIdle, o.State().Phase)

	result := o.SyncPendingOperations(context.Background())
	assert.Equal(t, 1, result.Succeeded)
}
