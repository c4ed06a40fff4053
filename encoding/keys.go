package encoding

import "encoding/binary"

// TypeID is a 16-bit type identifier (spec.md §3 "Type vertex").
type TypeID uint16

// ObjectID is the monotonically allocated per-type thing identifier for
// entities and relations (spec.md §3 "Thing vertex").
type ObjectID uint64

// TypeVertex encodes (prefix, type_id) -- spec.md §3, §6 "Type vertex [10..15]".
func TypeVertex(prefix Prefix, id TypeID) []byte {
	out := make([]byte, 3)
	out[0] = byte(prefix)
	binary.BigEndian.PutUint16(out[1:3], uint16(id))
	return out
}

func DecodeTypeVertex(b []byte) (Prefix, TypeID) {
	return Prefix(b[0]), TypeID(binary.BigEndian.Uint16(b[1:3]))
}

// ThingVertex encodes (prefix, type_id, object_id) for entities/relations
// -- spec.md §3, §6 "Thing entity [30], relation [31]".
func ThingVertex(prefix Prefix, typ TypeID, obj ObjectID) []byte {
	out := make([]byte, 11)
	out[0] = byte(prefix)
	binary.BigEndian.PutUint16(out[1:3], uint16(typ))
	binary.BigEndian.PutUint64(out[3:11], uint64(obj))
	return out
}

func DecodeThingVertex(b []byte) (Prefix, TypeID, ObjectID) {
	return Prefix(b[0]), TypeID(binary.BigEndian.Uint16(b[1:3])), ObjectID(binary.BigEndian.Uint64(b[3:11]))
}

// TypeEdge encodes (prefix, from_vertex, to_vertex) -- spec.md §3 "Type
// edge", §6 "Type edge sub/owns/plays/relates and reverses [100..107]".
func TypeEdge(prefix Prefix, from, to []byte) []byte {
	out := make([]byte, 0, 1+len(from)+len(to))
	out = append(out, byte(prefix))
	out = append(out, from...)
	out = append(out, to...)
	return out
}

// HasEdge encodes (owner_thing_vertex, attribute_thing_vertex) -- spec.md §3
// "Has edge", §6 "Has/has-reverse [130,131]".
func HasEdge(prefix Prefix, owner, attribute []byte) []byte {
	out := make([]byte, 0, 1+len(owner)+len(attribute))
	out = append(out, byte(prefix))
	out = append(out, owner...)
	out = append(out, attribute...)
	return out
}

// LinksEdge encodes (relation_vertex, player_vertex, role_type_id) -- spec.md
// §3 "Links edge", §6 "Role player/reverse [132,133]".
func LinksEdge(prefix Prefix, relation, player []byte, role TypeID) []byte {
	out := make([]byte, 0, 1+len(relation)+len(player)+2)
	out = append(out, byte(prefix))
	out = append(out, relation...)
	out = append(out, player...)
	roleBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(roleBytes, uint16(role))
	out = append(out, roleBytes...)
	return out
}

func DecodeLinksEdge(b []byte, relLen, playerLen int) (relation, player []byte, role TypeID) {
	relation = b[1 : 1+relLen]
	player = b[1+relLen : 1+relLen+playerLen]
	role = TypeID(binary.BigEndian.Uint16(b[1+relLen+playerLen:]))
	return
}

// DefinitionID is a 32-bit id for schema-level definitions (structs,
// functions), spec.md §3 "Definition key".
type DefinitionID uint32

// DefinitionKey encodes (prefix, definition_id) -- spec.md §3, §6.
func DefinitionKey(prefix Prefix, id DefinitionID) []byte {
	out := make([]byte, 5)
	out[0] = byte(prefix)
	binary.BigEndian.PutUint32(out[1:5], uint32(id))
	return out
}

// LabelIndexKey encodes the label->type index key -- spec.md §6
// "Label→type index [182]".
func LabelIndexKey(label string) []byte {
	out := make([]byte, 0, 1+len(label))
	out = append(out, byte(PrefixLabelIndex))
	out = append(out, []byte(label)...)
	return out
}

// PropertyTypeKey encodes a per-type property (name/annotation) key --
// spec.md §6 "Property type [160] / type edge [161]".
func PropertyTypeKey(vertex []byte, infix byte, suffix []byte) []byte {
	out := make([]byte, 0, 1+len(vertex)+1+len(suffix))
	out = append(out, byte(PrefixPropertyType))
	out = append(out, vertex...)
	out = append(out, infix)
	out = append(out, suffix...)
	return out
}
