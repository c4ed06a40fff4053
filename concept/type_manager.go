package concept

import (
	"sort"

	"github.com/latticedb/lattice/encoding"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/storage"
)

var (
	ErrUnknownLabel   = errs.Code{Component: "concept", Number: 1, Name: "unknown_label"}
	ErrAlreadyExists  = errs.Code{Component: "concept", Number: 2, Name: "type_already_exists"}
	ErrAbstractCreate = errs.Code{Component: "concept", Number: 3, Name: "abstract_instantiation"}
	ErrTypeIDExhausted = errs.Code{Component: "concept", Number: 4, Name: "type_ids_exhausted"}
	ErrRoleNotPlayed  = errs.Code{Component: "concept", Number: 5, Name: "role_not_played"}
	ErrOwnsNotDeclared = errs.Code{Component: "concept", Number: 6, Name: "owns_not_declared"}
)

// Annotations carry the schema-level constraints spec.md §4.5 lists:
// abstract, cardinality, key, unique, regex, range, values, distinct,
// independent, cascade, subkey.
type Annotations struct {
	Abstract    bool
	CardMin     int
	CardMax     int // -1 = unbounded
	Key         bool
	Unique      bool
	Regex       string
	RangeMin    *float64
	RangeMax    *float64
	Values      []string
	Distinct    bool
	Independent bool
	Cascade     bool
	Subkey      string
}

func defaultCardinality() Annotations {
	return Annotations{CardMin: 0, CardMax: -1}
}

// TypeRecord is the in-memory projection of one type vertex plus its schema
// edges, cached by TypeManager and persisted through KVWriter.
type TypeRecord struct {
	ID          encoding.TypeID
	Kind        Kind
	Label       string
	Super       encoding.TypeID // 0 = none
	HasSuper    bool
	Subtypes    map[encoding.TypeID]bool
	Owns        map[encoding.TypeID]Annotations // attribute type id -> annotations
	Plays       map[encoding.TypeID]bool        // role type id -> allowed
	Relates     map[encoding.TypeID]bool        // role type id -> declared on this relation
	ValueType   ValueType
	Annotations Annotations
}

// TypeManager holds a snapshot reference and provides schema CRUD, matching
// spec.md §4.5.
type TypeManager struct {
	kv        KVReader
	byID      map[kindID]*TypeRecord
	byLabel   map[string]*TypeRecord
	nextID    map[Kind]encoding.TypeID
}

type kindID struct {
	kind Kind
	id   encoding.TypeID
}

func NewTypeManager(kv KVReader) *TypeManager {
	tm := &TypeManager{
		kv:      kv,
		byID:    make(map[kindID]*TypeRecord),
		byLabel: make(map[string]*TypeRecord),
		nextID:  make(map[Kind]encoding.TypeID),
	}
	tm.load()
	return tm
}

// load reconstructs the schema cache from the label index persisted in kv.
// A from-scratch TypeManager over an empty snapshot simply finds nothing.
func (tm *TypeManager) load() {
	tm.kv.Iterate(storage.KeyspaceIndex, []byte{byte(encoding.PrefixLabelIndex)}, nil, func(key, value []byte) bool {
		if len(key) == 0 || key[0] != byte(encoding.PrefixLabelIndex) {
			return false
		}
		label := string(key[1:])
		kind, id := DecodeTypeValue(value)
		rec := &TypeRecord{
			ID: id, Kind: kind, Label: label,
			Subtypes: map[encoding.TypeID]bool{}, Owns: map[encoding.TypeID]Annotations{},
			Plays: map[encoding.TypeID]bool{}, Relates: map[encoding.TypeID]bool{},
			Annotations: defaultCardinality(),
		}
		tm.byID[kindID{kind, id}] = rec
		tm.byLabel[label] = rec
		if id >= tm.nextID[kind] {
			tm.nextID[kind] = id + 1
		}
		return true
	})
}

// DecodeTypeValue/EncodeTypeValue pack a (Kind, TypeID) as the label index's
// value bytes.
func EncodeTypeValue(kind Kind, id encoding.TypeID) []byte {
	return []byte{byte(kind), byte(id >> 8), byte(id)}
}

func DecodeTypeValue(b []byte) (Kind, encoding.TypeID) {
	return Kind(b[0]), encoding.TypeID(uint16(b[1])<<8 | uint16(b[2]))
}

// allocateTypeID returns the smallest unused id for kind, or an *errs.Error
// (ErrTypeIDExhausted) once the 16-bit space is exhausted (spec.md §8
// "Attribute-type exhaustion").
func (tm *TypeManager) allocateTypeID(kind Kind) (encoding.TypeID, error) {
	id := tm.nextID[kind]
	if id == 0xFFFF {
		return 0, errs.New(ErrTypeIDExhausted, "no remaining type ids for kind %s", kind)
	}
	tm.nextID[kind] = id + 1
	return id, nil
}

// CreateType defines a new type with the given label and kind, persisting
// its vertex and label index entry. Re-defining an existing label with the
// same kind is idempotent (spec.md §8 "Schema definition is idempotent").
func (tm *TypeManager) CreateType(w KVWriter, kind Kind, label string) (*TypeRecord, error) {
	if existing, ok := tm.byLabel[label]; ok {
		if existing.Kind != kind {
			return nil, errs.New(ErrAlreadyExists, "label %q already defines a %s", label, existing.Kind)
		}
		return existing, nil
	}
	id, err := tm.allocateTypeID(kind)
	if err != nil {
		return nil, err
	}
	vertexKey := encoding.TypeVertex(kind.prefix(), id)
	w.Insert(storage.KeyspaceTypeVertex, vertexKey, nil)
	w.Insert(storage.KeyspaceIndex, encoding.LabelIndexKey(label), EncodeTypeValue(kind, id))

	rec := &TypeRecord{
		ID: id, Kind: kind, Label: label,
		Subtypes: map[encoding.TypeID]bool{}, Owns: map[encoding.TypeID]Annotations{},
		Plays: map[encoding.TypeID]bool{}, Relates: map[encoding.TypeID]bool{},
		Annotations: defaultCardinality(),
	}
	tm.byID[kindID{kind, id}] = rec
	tm.byLabel[label] = rec
	return rec, nil
}

// GetByLabel resolves a label to its TypeRecord, or returns ErrUnknownLabel
// (the compiler attaches a fuzzy-match suggestion, SPEC_FULL §11).
func (tm *TypeManager) GetByLabel(label string) (*TypeRecord, error) {
	rec, ok := tm.byLabel[label]
	if !ok {
		return nil, errs.New(ErrUnknownLabel, "unknown label %q", label)
	}
	return rec, nil
}

func (tm *TypeManager) GetByID(kind Kind, id encoding.TypeID) (*TypeRecord, bool) {
	rec, ok := tm.byID[kindID{kind, id}]
	return rec, ok
}

// AllLabels returns every known label, used for fuzzy-match suggestions.
func (tm *TypeManager) AllLabels() []string {
	out := make([]string, 0, len(tm.byLabel))
	for l := range tm.byLabel {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// SetSupertype records sub <: super, persisting both the forward and
// reverse sub edges (spec.md §3 "Type edge").
func (tm *TypeManager) SetSupertype(w KVWriter, sub, super *TypeRecord) error {
	if sub.Kind != super.Kind {
		return errs.New(ErrAlreadyExists, "supertype kind mismatch: %s vs %s", sub.Kind, super.Kind)
	}
	subVertex := encoding.TypeVertex(sub.Kind.prefix(), sub.ID)
	superVertex := encoding.TypeVertex(super.Kind.prefix(), super.ID)
	w.Insert(storage.KeyspaceTypeVertex, encoding.TypeEdge(encoding.PrefixSub, subVertex, superVertex), nil)
	w.Insert(storage.KeyspaceTypeVertex, encoding.TypeEdge(encoding.PrefixSubReverse, superVertex, subVertex), nil)
	sub.Super = super.ID
	sub.HasSuper = true
	super.Subtypes[sub.ID] = true
	return nil
}

// SubtypeClosure returns rec's id plus every transitive subtype id, used by
// type inference (spec.md §4.7) to expand a declared type into its concrete
// subtype set.
func (tm *TypeManager) SubtypeClosure(rec *TypeRecord) []encoding.TypeID {
	seen := map[encoding.TypeID]bool{rec.ID: true}
	queue := []encoding.TypeID{rec.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if r, ok := tm.GetByID(rec.Kind, id); ok {
			for sub := range r.Subtypes {
				if !seen[sub] {
					seen[sub] = true
					queue = append(queue, sub)
				}
			}
		}
	}
	out := make([]encoding.TypeID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetOwns declares that an entity/relation type owns an attribute type, with
// the given annotations (spec.md §4.5).
func (tm *TypeManager) SetOwns(w KVWriter, owner, attr *TypeRecord, ann Annotations) {
	ownerVertex := encoding.TypeVertex(owner.Kind.prefix(), owner.ID)
	attrVertex := encoding.TypeVertex(attr.Kind.prefix(), attr.ID)
	w.Insert(storage.KeyspaceTypeVertex, encoding.TypeEdge(encoding.PrefixOwns, ownerVertex, attrVertex), nil)
	w.Insert(storage.KeyspaceTypeVertex, encoding.TypeEdge(encoding.PrefixOwnsReverse, attrVertex, ownerVertex), nil)
	owner.Owns[attr.ID] = ann
}

// SetPlays declares that a type may play a role (spec.md §4.5).
func (tm *TypeManager) SetPlays(w KVWriter, player, role *TypeRecord) {
	playerVertex := encoding.TypeVertex(player.Kind.prefix(), player.ID)
	roleVertex := encoding.TypeVertex(role.Kind.prefix(), role.ID)
	w.Insert(storage.KeyspaceTypeVertex, encoding.TypeEdge(encoding.PrefixPlays, playerVertex, roleVertex), nil)
	w.Insert(storage.KeyspaceTypeVertex, encoding.TypeEdge(encoding.PrefixPlaysReverse, roleVertex, playerVertex), nil)
	player.Plays[role.ID] = true
}

// SetRelates declares that a relation type relates a role (spec.md §4.5).
func (tm *TypeManager) SetRelates(w KVWriter, relation, role *TypeRecord) {
	relVertex := encoding.TypeVertex(relation.Kind.prefix(), relation.ID)
	roleVertex := encoding.TypeVertex(role.Kind.prefix(), role.ID)
	w.Insert(storage.KeyspaceTypeVertex, encoding.TypeEdge(encoding.PrefixRelates, relVertex, roleVertex), nil)
	w.Insert(storage.KeyspaceTypeVertex, encoding.TypeEdge(encoding.PrefixRelatesReverse, roleVertex, relVertex), nil)
	relation.Relates[role.ID] = true
}

// SetAnnotations replaces a type's own (non-owns) annotations, e.g. @abstract
// or @card on the type itself.
func (tm *TypeManager) SetAnnotations(rec *TypeRecord, ann Annotations) {
	rec.Annotations = ann
}

// SetValueType declares an attribute type's value category.
func (tm *TypeManager) SetValueType(rec *TypeRecord, vt ValueType) {
	rec.ValueType = vt
}

// TransitivelyOwns reports whether owner (or any of its supertypes) owns attr, per the
// inheritance rule spec.md §4.6 applies when checking "has" constraints.
func (tm *TypeManager) TransitivelyOwns(owner *TypeRecord, attrID encoding.TypeID) (Annotations, bool) {
	for cur := owner; cur != nil; {
		if ann, ok := cur.Owns[attrID]; ok {
			return ann, true
		}
		if !cur.HasSuper {
			break
		}
		next, ok := tm.GetByID(cur.Kind, cur.Super)
		if !ok {
			break
		}
		cur = next
	}
	return Annotations{}, false
}

// TransitivelyPlays reports whether player (or a supertype) plays role.
func (tm *TypeManager) TransitivelyPlays(player *TypeRecord, roleID encoding.TypeID) bool {
	for cur := player; cur != nil; {
		if cur.Plays[roleID] {
			return true
		}
		if !cur.HasSuper {
			break
		}
		next, ok := tm.GetByID(cur.Kind, cur.Super)
		if !ok {
			break
		}
		cur = next
	}
	return false
}
