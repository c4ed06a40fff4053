// Package engine implements the KV engine assumed by spec.md §1 as a
// collaborator whose internals are out of scope: "an LSM-style ordered
// key-value store supporting atomic batch writes and snapshot reads". Rather
// than depending on an external C library, lattice backs that assumed
// interface with an in-memory ordered tree (github.com/google/btree),
// matching the interface shape real engines like Pebble/Badger expose
// (other_examples has several of these: darshanime-pebble/sstable/table.go,
// Charizard13-badger/main.go) without importing them.
package engine

import (
	"sync"

	"github.com/google/btree"
)

// Key is a raw engine key: a keyspace id plus the key bytes within it. The
// keyspace id participates in ordering so the whole engine can be backed by
// a single tree while keyspaces still iterate independently.
type Key struct {
	Keyspace uint8
	Bytes    []byte
}

func (k Key) less(other Key) bool {
	if k.Keyspace != other.Keyspace {
		return k.Keyspace < other.Keyspace
	}
	return string(k.Bytes) < string(other.Bytes)
}

type entry struct {
	key   Key
	value []byte
}

func entryLess(a, b entry) bool { return a.key.less(b.key) }

// WriteOp is one operation within an atomic batch: set a value or delete a
// key outright. The engine itself knows nothing about MVCC versions; it
// stores whatever bytes the keyspace layer gives it.
type WriteOp struct {
	Key    Key
	Value  []byte // nil for Delete
	Delete bool
}

// Engine is the ordered, snapshot-read, atomically-batch-written store
// beneath the keyspace abstraction.
type Engine struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[entry]
}

func New() *Engine {
	return &Engine{tree: btree.NewG(32, entryLess)}
}

// Snapshot is a point-in-time, copy-on-write view suitable for concurrent
// reads while writes continue (google/btree's Clone is O(1) due to its
// copy-on-write node sharing).
type Snapshot struct {
	tree *btree.BTreeG[entry]
}

func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &Snapshot{tree: e.tree.Clone()}
}

func (s *Snapshot) Get(k Key) ([]byte, bool) {
	e, ok := s.tree.Get(entry{key: k})
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Iterate calls fn for every key in [start, end) of the given keyspace in
// ascending order, stopping early if fn returns false.
func (s *Snapshot) Iterate(keyspace uint8, start, end []byte, fn func(key, value []byte) bool) {
	pivot := entry{key: Key{Keyspace: keyspace, Bytes: start}}
	s.tree.Ascend(pivot, func(e entry) bool {
		if e.key.Keyspace != keyspace {
			return false
		}
		if end != nil && string(e.key.Bytes) >= string(end) {
			return false
		}
		return fn(e.key.Bytes, e.value)
	})
}

// ApplyBatch atomically applies ops to the engine. Atomic here means the
// whole batch is merged into a single tree generation: concurrent snapshots
// see either all of it or none of it, never a partial batch, since
// btree.Clone only ever observes committed generations.
func (e *Engine) ApplyBatch(ops []WriteOp) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, op := range ops {
		if op.Delete {
			e.tree.Delete(entry{key: op.Key})
		} else {
			e.tree.Set(entry{key: op.Key, value: op.Value})
		}
	}
}
