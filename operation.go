package opqueue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the mutation an operation will perform against the remote
// store.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Valid reports whether k is one of the known operation kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCreate, KindUpdate, KindDelete:
		return true
	}
	return false
}

// EntityType tags which remote collection an operation targets. The set is
// closed; EntityAudit exists but is exempt from sync (audit records are
// written durably at creation time by their own collaborator).
type EntityType string

const (
	EntityBase        EntityType = "base"
	EntityVehicle     EntityType = "vehicle"
	EntityKit         EntityType = "kit"
	EntityKitItem     EntityType = "kit_item"
	EntityCatalogItem EntityType = "catalog_item"
	EntityCategory    EntityType = "category"
	EntityUnit        EntityType = "unit"
	EntityUser        EntityType = "user"
	EntityAudit       EntityType = "audit"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityBase, EntityVehicle, EntityKit, EntityKitItem,
		EntityCatalogItem, EntityCategory, EntityUnit, EntityUser, EntityAudit:
		return true
	}
	return false
}

// Operation is a durable record of one intended mutation against a remote
// entity. The queue never inspects Payload; encoding is the producer's
// concern.
type Operation struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	EntityType  EntityType      `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	RetryCount  int             `json:"retry_count"`
	LastRetryAt *time.Time      `json:"last_retry_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Priority    int             `json:"priority"`
}

// NewOperation builds an Operation with a fresh id and the current time as
// its creation timestamp.
func NewOperation(kind Kind, entityType EntityType, entityID string, payload json.RawMessage, priority int) Operation {
	return Operation{
		ID:         uuid.NewString(),
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		CreatedAt:  time.Now(),
		Priority:   priority,
	}
}

// dedupKey identifies the pending-pool slot an operation occupies. At most
// one pending operation exists per key.
type dedupKey struct {
	entityType EntityType
	entityID   string
	kind       Kind
}

func (o Operation) key() dedupKey {
	return dedupKey{entityType: o.EntityType, entityID: o.EntityID, kind: o.Kind}
}
