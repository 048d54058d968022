package eviction

// Operation identifies the kind of entity write an eviction originates from.
type Operation uint8

const (
	OpInsert Operation = iota
	OpUpdate
	OpDelete
	// OpBulk means the entity identifier was intentionally dropped because too
	// many individual evictions were requested for one type: evict everything
	// for the type's region, not "evict id=<empty>".
	OpBulk
)

var operationNames = [...]string{"INSERT", "UPDATE", "DELETE", "BULK"}

func (op Operation) String() string {
	if int(op) < len(operationNames) {
		return operationNames[op]
	}
	return "UNKNOWN"
}

// ParseOperation maps a wire-format operation name back to its Operation.
func ParseOperation(name string) (Operation, bool) {
	for i, n := range operationNames {
		if n == name {
			return Operation(i), true
		}
	}
	return 0, false
}

// Eviction is one requested cache invalidation. Created by the ORM change
// hook at write time and treated as an immutable value from then on.
type Eviction struct {
	// EntityType is the stable type identifier. Always present.
	EntityType string

	// EntityID is the opaque entity identifier. Empty only for bulk
	// evictions, where it means "the whole type/region".
	EntityID string

	// Region is the logical cache partition, defaulting to the entity type's
	// canonical region.
	Region string

	// Op is the originating write operation.
	Op Operation
}

// New builds an Eviction, defaulting the region to the entity type's
// canonical region and dropping the identifier for bulk evictions.
func New(entityType, entityID, region string, op Operation) Eviction {
	if region == "" {
		region = entityType
	}
	if op == OpBulk {
		entityID = ""
	}
	return Eviction{
		EntityType: entityType,
		EntityID:   entityID,
		Region:     region,
		Op:         op,
	}
}

// NewBulk builds a whole-type eviction for the given type and region.
func NewBulk(entityType, region string) Eviction {
	return New(entityType, "", region, OpBulk)
}

// Bulk reports whether the eviction targets the whole type/region rather
// than one identified entity.
func (e Eviction) Bulk() bool {
	return e.Op == OpBulk || e.EntityID == ""
}

// Batch is an immutable snapshot of a transaction's pending evictions,
// published to the dispatcher at commit time. It is a copy, never a view:
// the source buffer is cleared immediately after the snapshot is taken.
type Batch []Eviction
