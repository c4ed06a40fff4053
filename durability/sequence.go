// Package durability implements the append-only, sequence-numbered,
// type-tagged write-ahead log described in spec.md §4.2, grounded on
// original_source/durability/durability.rs and wal/*.rs, in the teacher's
// idiom (plain structs, explicit byte framing, no reflection).
package durability

import "encoding/binary"

// SequenceNumber is a 64-bit monotonically increasing position, used both
// as a durability position and as an MVCC version (spec.md §3).
type SequenceNumber uint64

const (
	SequenceNumberMin SequenceNumber = 0
	SequenceNumberMax SequenceNumber = SequenceNumber(^uint64(0))
)

func (s SequenceNumber) Next() SequenceNumber { return s + 1 }

func (s SequenceNumber) Previous() SequenceNumber {
	if s == 0 {
		panic("durability: SequenceNumber.Previous underflow")
	}
	return s - 1
}

// Invert maps s onto [0, max] reversed, used to make "newer sorts first"
// MVCC key suffixes out of an otherwise ascending sequence number (spec.md
// §4.3 "MVCC keys").
func (s SequenceNumber) Invert() SequenceNumber {
	return SequenceNumber(uint64(SequenceNumberMax) - uint64(s))
}

const SequenceNumberSize = 8

func (s SequenceNumber) AppendBE(dst []byte) []byte {
	var buf [SequenceNumberSize]byte
	binary.BigEndian.PutUint64(buf[:], uint64(s))
	return append(dst, buf[:]...)
}

func SequenceNumberFromBE(b []byte) SequenceNumber {
	return SequenceNumber(binary.BigEndian.Uint64(b))
}
