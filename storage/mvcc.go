package storage

import (
	"github.com/latticedb/lattice/durability"
	"github.com/latticedb/lattice/storage/engine"
)

// opTag distinguishes an insert version from a delete tombstone at a given
// sequence number (spec.md §4.3 "MVCC keys").
type opTag uint8

const (
	opInsert opTag = 0
	opDelete opTag = 1
)

// encodeVersionedKey builds the on-engine key
// user_key || invert(sequence_number) || op_tag, so that within one user
// key, newer versions sort first (ascending engine order = descending
// sequence number), per spec.md §4.3.
func encodeVersionedKey(userKey []byte, seq durability.SequenceNumber, tag opTag) []byte {
	out := make([]byte, 0, len(userKey)+durability.SequenceNumberSize+1)
	out = append(out, userKey...)
	out = seq.Invert().AppendBE(out)
	out = append(out, byte(tag))
	return out
}

// splitVersionedKey reverses encodeVersionedKey, returning the user key
// portion, the true sequence number and the op tag.
func splitVersionedKey(versioned []byte) (userKey []byte, seq durability.SequenceNumber, tag opTag) {
	n := len(versioned)
	tag = opTag(versioned[n-1])
	invSeqBytes := versioned[n-1-durability.SequenceNumberSize : n-1]
	inv := durability.SequenceNumberFromBE(invSeqBytes)
	seq = inv.Invert()
	userKey = versioned[:n-1-durability.SequenceNumberSize]
	return
}

// visibleValue scans the versions of userKey in ascending engine order
// (i.e. descending real sequence number, per encodeVersionedKey) and
// returns the newest version with sequence <= watermark that is not a
// delete, per spec.md §8 "MVCC snapshot read".
func visibleValue(snap *engine.Snapshot, ks KeyspaceID, userKey []byte, watermark durability.SequenceNumber) ([]byte, bool) {
	// The smallest encoded key with this prefix corresponds to the highest
	// possible sequence number (since sequence is inverted); keys for
	// versions newer than the watermark sort before the first visible one,
	// so we must scan forward past them. A version key is userKey plus 9
	// suffix bytes (inverted sequence, tag), all below nine 0xFF bytes.
	prefixEnd := append(append([]byte{}, userKey...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	var found []byte
	var foundOK bool
	snap.Iterate(uint8(ks), userKey, prefixEnd, func(key, value []byte) bool {
		uk, seq, tag := splitVersionedKey(key)
		if string(uk) != string(userKey) {
			return true // a longer user key that starts with userKey
		}
		if seq > watermark {
			return true // keep scanning past versions too new to see
		}
		if tag == opDelete {
			foundOK = false
			return false
		}
		found = value
		foundOK = true
		return false
	})
	return found, foundOK
}
