// Package concept maps stored bytes to typed entities, relations,
// attributes and their schema types, with operation-time validity checks
// (spec.md §4.5).
package concept

import "github.com/latticedb/lattice/storage"

// KVReader is the read surface either a storage.ReadSnapshot or a
// storage.WriteSnapshot satisfies, letting TypeManager/ThingManager read
// through either a read-only or a write-buffering transaction.
type KVReader interface {
	Get(ks storage.KeyspaceID, key []byte) ([]byte, bool)
	Iterate(ks storage.KeyspaceID, start, end []byte, fn func(key, value []byte) bool)
}

// KVWriter additionally allows buffering writes; schema and thing mutation
// requires a KVWriter (i.e. a storage.WriteSnapshot).
type KVWriter interface {
	KVReader
	Insert(ks storage.KeyspaceID, key, value []byte)
	Put(ks storage.KeyspaceID, key, value []byte, preExisted bool)
	Delete(ks storage.KeyspaceID, key []byte)
}
