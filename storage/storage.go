package storage

import (
	"sync"

	"go.uber.org/zap"

	"github.com/latticedb/lattice/durability"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/logging"
	"github.com/latticedb/lattice/storage/engine"
)

// commitRecordType is the durability.RecordType used for every commit
// record this package writes (spec.md §4.3).
const commitRecordType durability.RecordType = 1

// versionRecordType tags the record holding durability.FormatVersion.
const versionRecordType durability.RecordType = 0

var (
	ErrConflict = errs.Code{Component: "storage", Number: 2, Name: "isolation_conflict"}
)

// Storage owns one engine, one durability log, and the commit watermark.
// All keyspaces share the single underlying engine, distinguished by
// KeyspaceID (spec.md §4.3).
type Storage struct {
	mu        sync.Mutex // serializes reserve+validate+apply at commit, per §5
	engine    *engine.Engine
	wal       *durability.Log
	watermark durability.SequenceNumber
	log       *zap.Logger
}

func Open(dataDir string) (*Storage, error) {
	wal, err := durability.Open(dataDir)
	if err != nil {
		return nil, err
	}
	records, err := wal.IterFrom(durability.SequenceNumberMin)
	if err == nil && len(records) == 0 {
		// Record 0 of a new log holds the format version, so commits start at 1.
		_, err = wal.SequencedWrite(versionRecordType, []byte(durability.FormatVersion))
	} else if err == nil && records[0].Type == versionRecordType {
		err = durability.CheckVersion(string(records[0].Bytes))
	}
	if err != nil {
		wal.Close()
		return nil, err
	}
	s := &Storage{
		engine: engine.New(),
		wal:    wal,
		log:    logging.Named("storage"),
	}
	for _, rec := range records {
		if rec.Type == commitRecordType {
			s.watermark = rec.SequenceNumber
		}
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.wal.Close()
}

// Watermark returns the sequence number of the most recently committed
// transaction.
func (s *Storage) Watermark() durability.SequenceNumber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// OpenReadSnapshot opens a read-only view at the current watermark.
func (s *Storage) OpenReadSnapshot() *ReadSnapshot {
	return s.OpenReadSnapshotAt(s.Watermark())
}

// OpenReadSnapshotAt opens a read-only view at a specific past sequence
// number (spec.md §4.3 "Open a read snapshot ... or a specified sequence
// number").
func (s *Storage) OpenReadSnapshotAt(at durability.SequenceNumber) *ReadSnapshot {
	return &ReadSnapshot{storage: s, engineSnap: s.engine.Snapshot(), watermark: at}
}

// OpenWriteSnapshot opens a write-buffering view at the current watermark.
func (s *Storage) OpenWriteSnapshot() *WriteSnapshot {
	return &WriteSnapshot{
		ReadSnapshot: *s.OpenReadSnapshot(),
		openAt:       s.Watermark(),
	}
}

// ReadSnapshot is a sequence-number-tagged view with no write buffer
// (spec.md §3 "Snapshot").
type ReadSnapshot struct {
	storage    *Storage
	engineSnap *engine.Snapshot
	watermark  durability.SequenceNumber
}

func (r *ReadSnapshot) Watermark() durability.SequenceNumber { return r.watermark }

// Get returns the newest visible value for (ks,key) as of the snapshot's
// watermark, or false if absent/deleted.
func (r *ReadSnapshot) Get(ks KeyspaceID, key []byte) ([]byte, bool) {
	return visibleValue(r.engineSnap, ks, key, r.watermark)
}

// Iterate walks visible versions of keys in [start,end) of keyspace ks,
// collapsing each user key's version history down to the single visible
// value (or skipping it if deleted), in ascending user-key order.
func (r *ReadSnapshot) Iterate(ks KeyspaceID, start, end []byte, fn func(key, value []byte) bool) {
	var lastUser []byte
	r.engineSnap.Iterate(uint8(ks), start, end, func(vkey, value []byte) bool {
		uk, seq, tag := splitVersionedKey(vkey)
		if lastUser != nil && string(uk) == string(lastUser) {
			return true // already resolved this user key's newest visible version
		}
		if seq > r.watermark {
			return true
		}
		lastUser = append([]byte{}, uk...)
		if tag == opDelete {
			return true
		}
		return fn(uk, value)
	})
}

// WriteSnapshot buffers writes per keyspace and validates isolation on
// commit (spec.md §4.3).
type WriteSnapshot struct {
	ReadSnapshot
	openAt   durability.SequenceNumber
	buffer   []WriteOp
	requires [][2]interface{} // (KeyspaceID, key) pairs asserted to exist by a Get
}

// Get additionally records the read as a Require dependency: if this
// snapshot later commits, a concurrent commit that deleted this key
// conflicts (spec.md §4.3 "Isolation validation").
func (w *WriteSnapshot) Get(ks KeyspaceID, key []byte) ([]byte, bool) {
	v, ok := w.bufferedGet(ks, key)
	if ok {
		return v.value, !v.deleted
	}
	val, found := w.ReadSnapshot.Get(ks, key)
	w.requires = append(w.requires, [2]interface{}{ks, append([]byte{}, key...)})
	return val, found
}

type bufferedValue struct {
	value   []byte
	deleted bool
}

func (w *WriteSnapshot) bufferedGet(ks KeyspaceID, key []byte) (bufferedValue, bool) {
	// Scan in reverse so the most recent buffered write for this key wins.
	for i := len(w.buffer) - 1; i >= 0; i-- {
		op := w.buffer[i]
		if op.Keyspace == ks && string(op.Key) == string(key) {
			return bufferedValue{value: op.Value, deleted: op.Kind == WriteDelete}, true
		}
	}
	return bufferedValue{}, false
}

func (w *WriteSnapshot) Insert(ks KeyspaceID, key, value []byte) {
	w.buffer = append(w.buffer, WriteOp{Keyspace: ks, Key: key, Value: value, Kind: WriteInsert})
}

// Put ensures key exists with value after commit, whether or not it existed
// before (spec.md §4.3 "Put semantics"). preExisted should reflect what the
// caller already knows at buffer time, letting commit elide redundant work.
func (w *WriteSnapshot) Put(ks KeyspaceID, key, value []byte, preExisted bool) {
	w.buffer = append(w.buffer, WriteOp{Keyspace: ks, Key: key, Value: value, Kind: WritePut, PreExisted: preExisted})
}

func (w *WriteSnapshot) Delete(ks KeyspaceID, key []byte) {
	w.buffer = append(w.buffer, WriteOp{Keyspace: ks, Key: key, Kind: WriteDelete})
}

// Buffer exposes the accumulated write operations, e.g. for tests asserting
// on write-plan output.
func (w *WriteSnapshot) Buffer() []WriteOp { return append([]WriteOp{}, w.buffer...) }

// Commit reserves the next sequence number, validates isolation against
// every commit in (openAt, reserved], writes the commit record, and merges
// the batch into the engine, per spec.md §4.3.
func (w *WriteSnapshot) Commit() (durability.SequenceNumber, error) {
	s := w.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	reserved := s.watermark.Next()

	concurrent, err := s.wal.IterFrom(w.openAt.Next())
	if err != nil {
		return 0, err
	}

	deleteSet := make(map[string]struct{})
	for _, rec := range concurrent {
		if rec.Type != commitRecordType {
			continue
		}
		cr, err := decodeCommitRecord(rec.Bytes)
		if err != nil {
			return 0, err
		}
		writeSet := cr.writeSetKeys()
		for _, req := range w.requires {
			ks := req[0].(KeyspaceID)
			key := req[1].([]byte)
			if _, conflict := writeSet[keyOf(ks, key)]; conflict {
				return 0, errs.New(ErrConflict, "concurrent commit touched a key this transaction depends on")
			}
		}
		for _, op := range w.buffer {
			if _, conflict := writeSet[keyOf(op.Keyspace, op.Key)]; conflict {
				return 0, errs.New(ErrConflict, "concurrent commit touched a key this transaction wrote")
			}
		}
		for k := range cr.deleteSetKeys() {
			deleteSet[k] = struct{}{}
		}
	}

	record := CommitRecord{}
	var engineOps []engine.WriteOp
	for i := range w.buffer {
		op := &w.buffer[i]
		if op.Kind == WritePut {
			if _, wasDeleted := deleteSet[keyOf(op.Keyspace, op.Key)]; wasDeleted {
				op.Reinsert = true
			} else if op.PreExisted {
				continue // elided: known to exist and nobody deleted it concurrently
			}
		}
		kind := op.Kind
		if kind == WritePut {
			kind = WriteInsert
		}
		tag := opInsert
		if kind == WriteDelete {
			tag = opDelete
		}
		vkey := encodeVersionedKey(op.Key, reserved, tag)
		engineOps = append(engineOps, engine.WriteOp{
			Key:   engine.Key{Keyspace: uint8(op.Keyspace), Bytes: vkey},
			Value: op.Value,
		})
		record.Writes = append(record.Writes, CommitRecordWrite{
			Keyspace: uint8(op.Keyspace), Key: op.Key, Value: op.Value, Kind: uint8(kind), Reinsert: op.Reinsert,
		})
	}
	for _, req := range w.requires {
		record.Requires = append(record.Requires, CommitRecordWrite{Keyspace: uint8(req[0].(KeyspaceID)), Key: req[1].([]byte)})
	}

	payload, err := encodeCommitRecord(record)
	if err != nil {
		return 0, err
	}
	gotSeq, err := s.wal.SequencedWrite(commitRecordType, payload)
	if err != nil {
		return 0, err
	}
	if gotSeq != reserved {
		// The durability log is the single source of truth for sequence
		// assignment; this package holds s.mu across the whole reserve+
		// validate+write+apply sequence so this should never happen.
		return 0, errs.New(ErrConflict, "sequence number reservation race")
	}

	s.engine.ApplyBatch(engineOps)
	s.watermark = reserved
	return reserved, nil
}
