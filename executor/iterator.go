package executor

import (
	"container/heap"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/encoding"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/ir"
	"github.com/latticedb/lattice/storage"
)

// IteratorKind tags one TupleIterator's realization, mirroring
// executable.Op (spec.md §4.8 "Instruction iterators", §9 "Polymorphic
// dispatch"). The outer engine matches on Kind; there is no Iterator
// interface with per-kind implementations.
type IteratorKind uint8

const (
	IterTypeList IteratorKind = iota
	IterHasOwner
	IterHasByAttribute
	IterLinksBounded
	IterLinksByPlayer
	IterMerged
)

// Tuple is one binding produced by a TupleIterator: up to two thing
// vertices (owner/attribute or relation/player) plus a role type for links,
// keyed positionally to the originating instruction's Output1/Output2.
type Tuple struct {
	V1, V2 concept.ThingVertexRef
	Role   encoding.TypeID
}

// TupleIterator realizes one executable.Instruction's iterator category
// (spec.md §4.8: "Type-list... Unbounded/bounded sorted... Merged...
// Check").
type TupleIterator struct {
	Kind IteratorKind

	typeList []concept.ThingVertexRef
	pos      int

	hasOwner concept.ThingVertexRef
	hasAttrs [][]byte

	hasAttribute   concept.ThingVertexRef
	hasOwnersByAttr [][]byte

	linksRel    concept.ThingVertexRef
	linksPlayer []concept.ThingVertexRef
	linksRole   []encoding.TypeID

	linksByPlayerRel []concept.ThingVertexRef

	merged *mergedHeap
}

// NewTypeListIterator enumerates every instance of every concrete type in
// types, the *Type-list* category (spec.md §4.8: "a sorted list of types
// from annotations" seeds which concrete types to scan).
func NewTypeListIterator(reader concept.KVReader, things *concept.ThingManager, kind concept.Kind, types []*concept.TypeRecord) *TupleIterator {
	it := &TupleIterator{Kind: IterTypeList}
	prefix := encoding.PrefixThingEntity
	if kind == concept.KindRelation {
		prefix = encoding.PrefixThingRelation
	}
	for _, rec := range types {
		things.IterateInstances(reader, prefix, rec, func(ref concept.ThingVertexRef) bool {
			it.typeList = append(it.typeList, ref)
			return true
		})
	}
	return it
}

// NewHasIterator realizes the has-sorted-owner category: every attribute
// owner owns, for an owner already bound by an earlier instruction
// (spec.md §4.8). It does not enumerate owners itself; when the owner
// variable is unbound, match.go produces no rows for that input row.
func NewHasIterator(reader concept.KVReader, things *concept.ThingManager, owner concept.ThingVertexRef) *TupleIterator {
	it := &TupleIterator{Kind: IterHasOwner, hasOwner: owner}
	things.IterateHasOwner(reader, owner, func(attr []byte) bool {
		it.hasAttrs = append(it.hasAttrs, append([]byte{}, attr...))
		return true
	})
	return it
}

// NewHasByAttributeIterator realizes the has-bounded-attribute category:
// every owner that owns attribute, the reverse-indexed counterpart to
// NewHasIterator, used when a has constraint's attribute side is already
// bound but its owner is not (spec.md §4.7 "bounded-by-attribute").
func NewHasByAttributeIterator(reader concept.KVReader, things *concept.ThingManager, attribute concept.ThingVertexRef) *TupleIterator {
	it := &TupleIterator{Kind: IterHasByAttribute, hasAttribute: attribute}
	things.IterateHasAttribute(reader, attribute, func(owner []byte) bool {
		it.hasOwnersByAttr = append(it.hasOwnersByAttr, append([]byte{}, owner...))
		return true
	})
	return it
}

// NewLinksIterator enumerates players of relation, filtered to role when
// role is non-zero (spec.md §4.8 "links-bounded").
func NewLinksIterator(reader concept.KVReader, relation concept.ThingVertexRef, role encoding.TypeID) *TupleIterator {
	it := &TupleIterator{Kind: IterLinksBounded, linksRel: relation}
	prefixKey := append([]byte{byte(encoding.PrefixLinks)}, relation.Vertex...)
	end := append(append([]byte{}, prefixKey...), 0xFF)
	reader.Iterate(storage.KeyspaceThingEdge, prefixKey, end, func(key, _ []byte) bool {
		player, r := decodeLinksTail(key, len(relation.Vertex))
		if role != 0 && r != role {
			return true
		}
		it.linksPlayer = append(it.linksPlayer, concept.ThingVertexRef{Vertex: player})
		it.linksRole = append(it.linksRole, r)
		return true
	})
	return it
}

// NewLinksByPlayerIterator enumerates relations in which player plays role,
// the reverse-indexed counterpart to NewLinksIterator, used when a links
// constraint's player side is already bound but its relation is not
// (spec.md §4.8 "iteration mode").
func NewLinksByPlayerIterator(reader concept.KVReader, player concept.ThingVertexRef, role encoding.TypeID) *TupleIterator {
	it := &TupleIterator{Kind: IterLinksByPlayer}
	prefixKey := append([]byte{byte(encoding.PrefixLinksReverse)}, player.Vertex...)
	end := append(append([]byte{}, prefixKey...), 0xFF)
	reader.Iterate(storage.KeyspaceThingEdge, prefixKey, end, func(key, _ []byte) bool {
		relation, r := decodeLinksTail(key, len(player.Vertex))
		if role != 0 && r != role {
			return true
		}
		it.linksByPlayerRel = append(it.linksByPlayerRel, concept.ThingVertexRef{Vertex: relation})
		return true
	})
	return it
}

// decodeLinksTail splits the (player, role) suffix of a links-edge key,
// mirroring encoding.LinksEdge's layout without needing the player length
// in advance (the role field is a fixed 2-byte big-endian suffix).
func decodeLinksTail(key []byte, relLen int) (player []byte, role encoding.TypeID) {
	tail := key[1+relLen:]
	player = append([]byte{}, tail[:len(tail)-2]...)
	role = encoding.TypeID(uint16(tail[len(tail)-2])<<8 | uint16(tail[len(tail)-1]))
	return
}

func (it *TupleIterator) Next() (Tuple, bool) {
	switch it.Kind {
	case IterTypeList:
		if it.pos >= len(it.typeList) {
			return Tuple{}, false
		}
		v := it.typeList[it.pos]
		it.pos++
		return Tuple{V1: v}, true

	case IterHasOwner:
		if it.pos >= len(it.hasAttrs) {
			return Tuple{}, false
		}
		attr := it.hasAttrs[it.pos]
		it.pos++
		return Tuple{V1: it.hasOwner, V2: concept.ThingVertexRef{Vertex: attr}}, true

	case IterHasByAttribute:
		if it.pos >= len(it.hasOwnersByAttr) {
			return Tuple{}, false
		}
		owner := it.hasOwnersByAttr[it.pos]
		it.pos++
		return Tuple{V1: concept.ThingVertexRef{Vertex: owner}, V2: it.hasAttribute}, true

	case IterLinksBounded:
		if it.pos >= len(it.linksPlayer) {
			return Tuple{}, false
		}
		p, r := it.linksPlayer[it.pos], it.linksRole[it.pos]
		it.pos++
		return Tuple{V1: it.linksRel, V2: p, Role: r}, true

	case IterLinksByPlayer:
		if it.pos >= len(it.linksByPlayerRel) {
			return Tuple{}, false
		}
		rel := it.linksByPlayerRel[it.pos]
		it.pos++
		return Tuple{V1: rel}, true

	case IterMerged:
		return it.merged.next()
	}
	return Tuple{}, false
}

// mergedHeap k-way merges several sorted sub-iterators by current key,
// yielding a single globally sorted stream (spec.md §4.8 "Merged": "a k-way
// merge... maintained with a binary heap of peekable sub-iterators ordered
// by current key").
type mergedHeap struct {
	items mergedItems
}

type mergedItem struct {
	it   *TupleIterator
	head Tuple
}

type mergedItems []*mergedItem

func (m mergedItems) Len() int { return len(m) }
func (m mergedItems) Less(i, j int) bool {
	return string(m[i].head.V1.Vertex) < string(m[j].head.V1.Vertex)
}
func (m mergedItems) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m *mergedItems) Push(x any)   { *m = append(*m, x.(*mergedItem)) }
func (m *mergedItems) Pop() any {
	old := *m
	n := len(old)
	item := old[n-1]
	*m = old[:n-1]
	return item
}

func NewMergedIterator(subs []*TupleIterator) *TupleIterator {
	h := &mergedHeap{}
	for _, s := range subs {
		if head, ok := s.Next(); ok {
			heap.Push(&h.items, &mergedItem{it: s, head: head})
		}
	}
	return &TupleIterator{Kind: IterMerged, merged: h}
}

func (h *mergedHeap) next() (Tuple, bool) {
	if h.items.Len() == 0 {
		return Tuple{}, false
	}
	top := heap.Pop(&h.items).(*mergedItem)
	result := top.head
	if next, ok := top.it.Next(); ok {
		top.head = next
		heap.Push(&h.items, top)
	}
	return result, true
}

// evaluateCheck implements the *Check* category: an existence test over
// already-bound variables, used for comparison constraints attached to the
// earliest instruction where both sides are bound (spec.md §4.8).
func evaluateCheck(pred executable.CheckPredicate, left, right concept.Value) bool {
	switch pred.Op {
	case ir.CompareEQ:
		return compareValues(left, right) == 0
	case ir.CompareNEQ:
		return compareValues(left, right) != 0
	case ir.CompareLT:
		return compareValues(left, right) < 0
	case ir.CompareLTE:
		return compareValues(left, right) <= 0
	case ir.CompareGT:
		return compareValues(left, right) > 0
	case ir.CompareGTE:
		return compareValues(left, right) >= 0
	case ir.CompareContains:
		return contains(left.String, right.String)
	case ir.CompareLike:
		return likeMatch(left.String, right.String)
	}
	return false
}

// compareValues orders two values of the same declared type by their
// order-preserving encoding, so check semantics agree with the storage
// layer's byte-lex ordering invariant (spec.md §8).
func compareValues(a, b concept.Value) int {
	ab, bb := string(a.EncodeKeyBytes()), string(b.EncodeKeyBytes())
	switch {
	case ab < bb:
		return -1
	case ab > bb:
		return 1
	default:
		return 0
	}
}

func contains(haystack, needle string) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// likeMatch implements a minimal SQL-style LIKE: '%' matches any run of
// characters, everything else matches literally.
func likeMatch(s, pattern string) bool {
	if pattern == "" {
		return s == ""
	}
	if pattern[0] == '%' {
		for i := 0; i <= len(s); i++ {
			if likeMatch(s[i:], pattern[1:]) {
				return true
			}
		}
		return false
	}
	if s == "" {
		return false
	}
	return s[0] == pattern[0] && likeMatch(s[1:], pattern[1:])
}
