package opqueue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOperation(t *testing.T) {
	op := NewOperation(KindCreate, EntityKit, "k1", json.RawMessage(`{"name":"toolkit"}`), 3)

	assert.NotEmpty(t, op.ID)
	assert.False(t, op.CreatedAt.IsZero())
	assert.Equal(t, 0, op.RetryCount)
	assert.Nil(t, op.LastRetryAt)
	assert.Equal(t, 3, op.Priority)

	other := NewOperation(KindCreate, EntityKit, "k1", nil, 3)
	assert.NotEqual(t, op.ID, other.ID, "each operation gets its own id")
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindCreate.Valid())
	assert.True(t, KindUpdate.Valid())
	assert.True(t, KindDelete.Valid())
	assert.False(t, Kind("upsert").Valid())
}

func TestEntityTypeValid(t *testing.T) {
	for _, et := range []EntityType{
		EntityBase, EntityVehicle, EntityKit, EntityKitItem,
		EntityCatalogItem, EntityCategory, EntityUnit, EntityUser, EntityAudit,
	} {
		assert.True(t, et.Valid(), string(et))
	}
	assert.False(t, EntityType("warehouse").Valid())
}

func TestOperationJSONRoundTrip(t *testing.T) {
	op := NewOperation(KindUpdate, EntityVehicle, "v1", json.RawMessage(`{"plate":"AB-12"}`), 1)
	op.LastError = "remote 503"

	data, err := json.Marshal(op)
	assert.NoError(t, err)

	var got Operation
	assert.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, op.ID, got.ID)
	assert.Equal(t, op.Kind, got.Kind)
	assert.JSONEq(t, string(op.Payload), string(got.Payload))
	assert.Nil(t, got.LastRetryAt)
}
