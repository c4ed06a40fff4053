// Package storage implements the keyspace abstraction, MVCC snapshots and
// write-buffered commit protocol of spec.md §4.3, layered over the engine
// package's assumed LSM-style KV store.
package storage

// KeyspaceID identifies one of the prefix-length-optimized keyspaces a
// database is partitioned into (spec.md §3 "Keyspace", §4.3).
type KeyspaceID uint8

// The five keyspaces are tuned for the key-prefix lengths named in spec.md
// §4.3: 11, 15, 16, 17 and 25 bytes, each sized so a Bloom filter / prefix
// seek over that keyspace is cheap for the key family it stores.
const (
	KeyspaceTypeVertex   KeyspaceID = iota // type vertices and type edges: short, fixed keys
	KeyspaceThingVertex                    // entity/relation vertices: prefix+type_id+object_id
	KeyspaceThingEdge                      // has/links edges: two thing vertices concatenated
	KeyspaceAttributeLong                   // long-form attribute vertices: hash+tiebreaker
	KeyspaceIndex                           // label->type index, role-player index, properties
)

// KeyspaceSpec describes one keyspace's tuning parameters.
type KeyspaceSpec struct {
	ID           KeyspaceID
	Name         string
	PrefixLength int // optimal key-prefix length for Bloom-filter / seek costs
}

var Keyspaces = []KeyspaceSpec{
	{KeyspaceTypeVertex, "type_vertex", 11},
	{KeyspaceThingVertex, "thing_vertex", 15},
	{KeyspaceThingEdge, "thing_edge", 17},
	{KeyspaceAttributeLong, "attribute_long", 25},
	{KeyspaceIndex, "index", 16},
}
