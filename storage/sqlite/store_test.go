package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opqueue "github.com/inventakit/go-opqueue"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "opqueue.db")
	store, err := NewWithDataSource(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	retryAt := time.Now().Add(-30 * time.Second).UTC().Truncate(time.Second)
	pending := []opqueue.Operation{
		opqueue.NewOperation(opqueue.KindCreate, opqueue.EntityKit, "k1", json.RawMessage(`{"name":"medkit"}`), 0),
		opqueue.NewOperation(opqueue.KindUpdate, opqueue.EntityVehicle, "v7", json.RawMessage(`{"plate":"X"}`), 5),
	}
	pending[1].RetryCount = 2
	pending[1].LastRetryAt = &retryAt
	pending[1].LastError = "remote 503"

	failed := []opqueue.Operation{
		opqueue.NewOperation(opqueue.KindDelete, opqueue.EntityUser, "u3", nil, 0),
	}
	failed[0].RetryCount = 5
	failed[0].LastError = "gone"

	require.NoError(t, store.Save(ctx, pending, failed))

	gotPending, gotFailed, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, gotPending, 2)
	require.Len(t, gotFailed, 1)

	assert.Equal(t, pending[0].ID, gotPending[0].ID)
	assert.Equal(t, opqueue.KindCreate, gotPending[0].Kind)
	assert.Equal(t, opqueue.EntityKit, gotPending[0].EntityType)
	assert.Equal(t, "k1", gotPending[0].EntityID)
	assert.JSONEq(t, `{"name":"medkit"}`, string(gotPending[0].Payload))
	assert.Nil(t, gotPending[0].LastRetryAt)
	assert.Empty(t, gotPending[0].LastError)

	assert.Equal(t, 2, gotPending[1].RetryCount)
	require.NotNil(t, gotPending[1].LastRetryAt)
	assert.WithinDuration(t, retryAt, *gotPending[1].LastRetryAt, time.Second)
	assert.Equal(t, "remote 503", gotPending[1].LastError)
	assert.Equal(t, 5, gotPending[1].Priority)

	assert.Equal(t, failed[0].ID, gotFailed[0].ID)
	assert.Equal(t, 5, gotFailed[0].RetryCount)
	assert.Nil(t, gotFailed[0].Payload)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := []opqueue.Operation{
		opqueue.NewOperation(opqueue.KindCreate, opqueue.EntityBase, "b1", nil, 0),
		opqueue.NewOperation(opqueue.KindCreate, opqueue.EntityBase, "b2", nil, 0),
	}
	require.NoError(t, store.Save(ctx, first, nil))

	second := []opqueue.Operation{
		opqueue.NewOperation(opqueue.KindUpdate, opqueue.EntityBase, "b3", nil, 0),
	}
	require.NoError(t, store.Save(ctx, second, nil))

	pending, failed, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Empty(t, failed)
	assert.Equal(t, "b3", pending[0].EntityID)
}

func TestLoadPreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var pending []opqueue.Operation
	for i := 0; i < 10; i++ {
		op := opqueue.NewOperation(opqueue.KindCreate, opqueue.EntityCatalogItem,
			string(rune('a'+i)), nil, i)
		pending = append(pending, op)
	}
	require.NoError(t, store.Save(ctx, pending, nil))

	got, _, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i := range pending {
		assert.Equal(t, pending[i].ID, got[i].ID, "position %d", i)
	}
}

func TestLoadEmptyStore(t *testing.T) {
	store := newTestStore(t)

	pending, failed, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, failed)
}

func TestSaveEmptyPoolsClears(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ops := []opqueue.Operation{
		opqueue.NewOperation(opqueue.KindCreate, opqueue.EntityUnit, "u1", nil, 0),
	}
	require.NoError(t, store.Save(ctx, ops, nil))
	require.NoError(t, store.Save(ctx, nil, nil))

	pending, failed, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, failed)
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	err := store.Save(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, _, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrStoreClosed)

	// Closing twice is safe
	assert.NoError(t, store.Close())
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("test.db")
	assert.Equal(t, "operations", config.TableName)
	assert.True(t, config.EnableWAL)
	assert.Contains(t, config.DataSourceName, "_journal_mode=WAL")
	assert.Equal(t, 25, config.MaxOpenConns)
}
