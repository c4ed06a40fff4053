package storage

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/latticedb/lattice/errs"
)

// CommitRecordWrite is the CBOR-serializable form of a single WriteOp, used
// as the durability log payload for a transaction's commit (spec.md §4.3
// "commit record").
type CommitRecordWrite struct {
	Keyspace uint8
	Key      []byte
	Value    []byte
	Kind     uint8
	Reinsert bool
}

// CommitRecord is the full payload written to the durability log at commit
// time: the write buffer plus the dependency set (reads that asserted
// existence, for isolation validation).
type CommitRecord struct {
	Writes   []CommitRecordWrite
	Requires []CommitRecordWrite // Keyspace+Key populated; Value/Kind unused
}

var ErrEncodeCommit = errs.Code{Component: "storage", Number: 1, Name: "encode_commit_record"}

func encodeCommitRecord(r CommitRecord) ([]byte, error) {
	b, err := cbor.Marshal(r)
	if err != nil {
		return nil, errs.Wrap(ErrEncodeCommit, err, "encoding commit record")
	}
	return b, nil
}

func decodeCommitRecord(b []byte) (CommitRecord, error) {
	var r CommitRecord
	if err := cbor.Unmarshal(b, &r); err != nil {
		return CommitRecord{}, errs.Wrap(ErrEncodeCommit, err, "decoding commit record")
	}
	return r, nil
}

// writeSetKeys returns the set of (keyspace,key) pairs a commit record's
// Writes touch, as a lookup set for conflict detection.
func (r CommitRecord) writeSetKeys() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Writes))
	for _, w := range r.Writes {
		set[keyOf(KeyspaceID(w.Keyspace), w.Key)] = struct{}{}
	}
	return set
}

// deleteSetKeys returns the keys this commit deleted, which a concurrent
// Put must know about to set its Reinsert flag.
func (r CommitRecord) deleteSetKeys() map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range r.Writes {
		if WriteKind(w.Kind) == WriteDelete {
			set[keyOf(KeyspaceID(w.Keyspace), w.Key)] = struct{}{}
		}
	}
	return set
}
