package concept

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/latticedb/lattice/encoding"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/storage"
)

var (
	ErrHasNotOwned    = errs.Code{Component: "concept", Number: 10, Name: "has_not_owned"}
	ErrPlayerNotAllowed = errs.Code{Component: "concept", Number: 11, Name: "player_not_allowed"}
	ErrValueTypeMismatch = errs.Code{Component: "concept", Number: 12, Name: "value_type_mismatch"}
)

// Value is a tagged attribute value, carrying exactly one populated field
// per ValueType (spec.md §3 "Attribute value encoding").
type Value struct {
	Type     ValueType
	Boolean  bool
	Long     int64
	Double   float64
	Decimal  decimal.Decimal
	String   string
	Date     time.Time
	DateTime time.Time
	Duration time.Duration
}

// EncodeKeyBytes returns the value-id portion of an attribute thing vertex
// for v, per spec.md §3 "Thing vertex" (attribute case).
func (v Value) EncodeKeyBytes() []byte {
	switch v.Type {
	case ValueTypeBoolean:
		return encoding.EncodeBoolean(v.Boolean)
	case ValueTypeLong:
		return encoding.EncodeInteger(v.Long)
	case ValueTypeDouble:
		return encoding.EncodeDouble(v.Double)
	case ValueTypeDecimal:
		return encoding.EncodeDecimal(v.Decimal)
	case ValueTypeDate:
		return encoding.EncodeDate(v.Date)
	case ValueTypeDateTime:
		return encoding.EncodeDateTime(v.DateTime)
	case ValueTypeDuration:
		return encoding.EncodeDuration(v.Duration)
	case ValueTypeString:
		if len(v.String) <= encoding.LongStringThreshold {
			return encoding.EncodeStringInline(v.String)
		}
		return encoding.EncodeStringLongKey(v.String, 0)
	default:
		panic("concept: unsupported value type for key encoding")
	}
}

func (v Value) attrPrefix() encoding.Prefix {
	switch v.Type {
	case ValueTypeBoolean:
		return encoding.PrefixAttrBoolean
	case ValueTypeLong:
		return encoding.PrefixAttrLong
	case ValueTypeDouble:
		return encoding.PrefixAttrDouble
	case ValueTypeDecimal:
		return encoding.PrefixAttrDecimal
	case ValueTypeDate:
		return encoding.PrefixAttrDate
	case ValueTypeDateTime:
		return encoding.PrefixAttrDateTime
	case ValueTypeDuration:
		return encoding.PrefixAttrDuration
	case ValueTypeString:
		if len(v.String) <= encoding.LongStringThreshold {
			return encoding.PrefixAttrString
		}
		return encoding.PrefixAttrStringLong
	default:
		panic("concept: unsupported value type")
	}
}

// ThingVertexRef identifies a concrete instance: its vertex bytes plus the
// (prefix,type,object/value) it decodes to, used as a map key and as the
// payload of edges.
type ThingVertexRef struct {
	Vertex []byte
}

// ThingManager provides create/put/link/iterate operations over instances,
// interning attributes by value and validating against the schema at
// operation time (spec.md §4.5).
type ThingManager struct {
	types       *TypeManager
	nextObjectID map[encoding.TypeID]encoding.ObjectID
}

func NewThingManager(types *TypeManager) *ThingManager {
	return &ThingManager{types: types, nextObjectID: make(map[encoding.TypeID]encoding.ObjectID)}
}

// CreateEntity allocates a fresh object id under typ and writes its vertex.
// Forbids instantiating an abstract type (spec.md §4.5).
func (tmg *ThingManager) CreateEntity(w KVWriter, typ *TypeRecord) (ThingVertexRef, error) {
	if typ.Annotations.Abstract {
		return ThingVertexRef{}, errs.New(ErrAbstractCreate, "cannot create instance of abstract type %s", typ.Label)
	}
	obj := tmg.allocateObjectID(typ.ID)
	vertex := encoding.ThingVertex(encoding.PrefixThingEntity, typ.ID, obj)
	w.Insert(storage.KeyspaceThingVertex, vertex, nil)
	return ThingVertexRef{Vertex: vertex}, nil
}

func (tmg *ThingManager) CreateRelation(w KVWriter, typ *TypeRecord) (ThingVertexRef, error) {
	if typ.Annotations.Abstract {
		return ThingVertexRef{}, errs.New(ErrAbstractCreate, "cannot create instance of abstract type %s", typ.Label)
	}
	obj := tmg.allocateObjectID(typ.ID)
	vertex := encoding.ThingVertex(encoding.PrefixThingRelation, typ.ID, obj)
	w.Insert(storage.KeyspaceThingVertex, vertex, nil)
	return ThingVertexRef{Vertex: vertex}, nil
}

func (tmg *ThingManager) allocateObjectID(typ encoding.TypeID) encoding.ObjectID {
	id := tmg.nextObjectID[typ]
	tmg.nextObjectID[typ] = id + 1
	return id
}

// PutAttribute interns v under typ: the attribute thing vertex is derived
// from the value itself, so re-putting an equal value is a no-op Put
// (spec.md §3 "Has edge", §8 "Put(k, v) applied twice has the same effect
// as once").
func (tmg *ThingManager) PutAttribute(w KVWriter, typ *TypeRecord, v Value) (ThingVertexRef, error) {
	if typ.ValueType != v.Type {
		return ThingVertexRef{}, errs.New(ErrValueTypeMismatch, "attribute type %s expects value type %v, got %v", typ.Label, typ.ValueType, v.Type)
	}
	keyBytes := v.EncodeKeyBytes()
	vertex := encoding.ThingVertex(v.attrPrefix(), typ.ID, objectIDFromValueKey(keyBytes))
	ks := storage.KeyspaceThingVertex
	if v.attrPrefix() == encoding.PrefixAttrStringLong {
		ks = storage.KeyspaceAttributeLong
	}
	existed := false
	if _, ok := w.Get(ks, vertex); ok {
		existed = true
	}
	payload := keyBytes
	if v.Type == ValueTypeString && len(v.String) > encoding.LongStringThreshold {
		payload = []byte(v.String) // store full string; vertex key is only hash+tiebreaker
	}
	w.Put(ks, vertex, payload, existed)
	return ThingVertexRef{Vertex: vertex}, nil
}

// objectIDFromValueKey derives a stable pseudo object-id from an encoded
// attribute value so every attribute category's vertex is the uniform
// (prefix,type,object_id) shape, while the actual identity-defining bytes
// remain whatever EncodeKeyBytes produced (short values: the value itself;
// long strings: hash+tiebreaker).
func objectIDFromValueKey(keyBytes []byte) encoding.ObjectID {
	if len(keyBytes) >= 8 {
		return encoding.ObjectID(xxhash.Sum64(keyBytes))
	}
	var buf [8]byte
	copy(buf[8-len(keyBytes):], keyBytes)
	return encoding.ObjectID(xxhash.Sum64(buf[:]))
}

// SetHas creates the has/has-reverse edge pair, validating that owner's type
// owns attribute's type (spec.md §4.5).
func (tmg *ThingManager) SetHas(w KVWriter, ownerType *TypeRecord, owner ThingVertexRef, attrType *TypeRecord, attr ThingVertexRef) error {
	if _, ok := tmg.types.TransitivelyOwns(ownerType, attrType.ID); !ok {
		return errs.New(ErrHasNotOwned, "%s does not own attribute type %s", ownerType.Label, attrType.Label)
	}
	w.Insert(storage.KeyspaceThingEdge, encoding.HasEdge(encoding.PrefixHas, owner.Vertex, attr.Vertex), nil)
	w.Insert(storage.KeyspaceThingEdge, encoding.HasEdge(encoding.PrefixHasReverse, attr.Vertex, owner.Vertex), nil)
	return nil
}

func (tmg *ThingManager) UnsetHas(w KVWriter, owner ThingVertexRef, attr ThingVertexRef) {
	w.Delete(storage.KeyspaceThingEdge, encoding.HasEdge(encoding.PrefixHas, owner.Vertex, attr.Vertex))
	w.Delete(storage.KeyspaceThingEdge, encoding.HasEdge(encoding.PrefixHasReverse, attr.Vertex, owner.Vertex))
}

// AddPlayer creates the links/links-reverse edge pair for player playing
// role in relation, validating that player's type plays role (spec.md §4.5).
func (tmg *ThingManager) AddPlayer(w KVWriter, relation ThingVertexRef, playerType *TypeRecord, player ThingVertexRef, role *TypeRecord) error {
	if !tmg.types.TransitivelyPlays(playerType, role.ID) {
		return errs.New(ErrPlayerNotAllowed, "%s does not play role %s", playerType.Label, role.Label)
	}
	w.Insert(storage.KeyspaceThingEdge, encoding.LinksEdge(encoding.PrefixLinks, relation.Vertex, player.Vertex, role.ID), nil)
	w.Insert(storage.KeyspaceThingEdge, encoding.LinksEdge(encoding.PrefixLinksReverse, player.Vertex, relation.Vertex, role.ID), nil)
	return nil
}

func (tmg *ThingManager) RemovePlayer(w KVWriter, relation ThingVertexRef, player ThingVertexRef, role *TypeRecord) {
	w.Delete(storage.KeyspaceThingEdge, encoding.LinksEdge(encoding.PrefixLinks, relation.Vertex, player.Vertex, role.ID))
	w.Delete(storage.KeyspaceThingEdge, encoding.LinksEdge(encoding.PrefixLinksReverse, player.Vertex, relation.Vertex, role.ID))
}

// IterateInstances walks every committed instance vertex of typ.
func (tmg *ThingManager) IterateInstances(r KVReader, prefix encoding.Prefix, typ *TypeRecord, fn func(ThingVertexRef) bool) {
	start := encoding.TypeVertex(prefix, typ.ID)
	end := append(append([]byte{}, start...), 0xFF)
	r.Iterate(storage.KeyspaceThingVertex, start, end, func(key, _ []byte) bool {
		return fn(ThingVertexRef{Vertex: append([]byte{}, key...)})
	})
}

// IterateHasOwner walks the attribute vertices owned by owner (unbounded
// sorted by owner, spec.md §4.8 "Instruction iterators").
func (tmg *ThingManager) IterateHasOwner(r KVReader, owner ThingVertexRef, fn func(attribute []byte) bool) {
	prefixKey := append([]byte{byte(encoding.PrefixHas)}, owner.Vertex...)
	end := append(append([]byte{}, prefixKey...), 0xFF)
	r.Iterate(storage.KeyspaceThingEdge, prefixKey, end, func(key, _ []byte) bool {
		attr := append([]byte{}, key[1+len(owner.Vertex):]...)
		return fn(attr)
	})
}

// IterateHasAttribute walks the owner vertices that own attribute, the
// reverse-indexed counterpart to IterateHasOwner: SetHas always writes both
// the (owner, attribute) and (attribute, owner) edges, so a query whose
// attribute side is bound but owner side isn't can scan this index instead
// of every owner's forward edge list (spec.md §4.7 "bounded-by-attribute"
// has category).
func (tmg *ThingManager) IterateHasAttribute(r KVReader, attribute ThingVertexRef, fn func(owner []byte) bool) {
	prefixKey := append([]byte{byte(encoding.PrefixHasReverse)}, attribute.Vertex...)
	end := append(append([]byte{}, prefixKey...), 0xFF)
	r.Iterate(storage.KeyspaceThingEdge, prefixKey, end, func(key, _ []byte) bool {
		owner := append([]byte{}, key[1+len(attribute.Vertex):]...)
		return fn(owner)
	})
}
