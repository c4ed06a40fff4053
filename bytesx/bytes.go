// Package bytesx provides the owned/borrowed byte buffer and the prefix
// KeyRange used by every layer above raw storage (spec.md §3 "Byte buffer",
// §4.1). Grounded on the teacher's lending-iterator discipline in
// executor/context.go: a borrowed Bytes must not outlive the slice it
// points into.
package bytesx

import "bytes"

// Bytes is a discriminated byte buffer: either it owns its storage (a copy
// was made) or it borrows a slice from somewhere else. Borrowed variants are
// immutable; callers that need to keep a Bytes past the lifetime of its
// source must call ToOwned first.
type Bytes struct {
	data   []byte
	owned  bool
	source string // debug label for borrowed provenance; empty when owned
}

// Owned copies b into a new Bytes that owns its storage.
func Owned(b []byte) Bytes {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Bytes{data: cp, owned: true}
}

// Borrowed wraps b without copying. The caller is responsible for ensuring
// b is not mutated or freed while the returned Bytes is alive.
func Borrowed(b []byte) Bytes {
	return Bytes{data: b, owned: false}
}

// BorrowedFrom is Borrowed with a debug label identifying the lender; the
// label is kept on the value and no method of this package reads it.
func BorrowedFrom(b []byte, source string) Bytes {
	return Bytes{data: b, owned: false, source: source}
}

func (b Bytes) Bytes() []byte { return b.data }
func (b Bytes) Len() int      { return len(b.data) }
func (b Bytes) IsOwned() bool { return b.owned }
func (b Bytes) IsEmpty() bool { return len(b.data) == 0 }

// Truncate returns a new Bytes covering data[:n]. Panics (programmer error)
// if n exceeds the buffer length, per spec.md §4.1.
func (b Bytes) Truncate(n int) Bytes {
	if n > len(b.data) {
		panic("bytesx: truncate length exceeds buffer")
	}
	return Bytes{data: b.data[:n], owned: b.owned, source: b.source}
}

// IntoRange returns a new Bytes covering data[start:end]. Panics on
// out-of-bounds ranges.
func (b Bytes) IntoRange(start, end int) Bytes {
	if start < 0 || end > len(b.data) || start > end {
		panic("bytesx: range out of bounds")
	}
	return Bytes{data: b.data[start:end], owned: b.owned, source: b.source}
}

// ToOwned materializes an owned copy, regardless of the receiver's kind.
func (b Bytes) ToOwned() Bytes {
	if b.owned {
		return b
	}
	return Owned(b.data)
}

// IntoOwned is an alias for ToOwned matching the spec's naming.
func (b Bytes) IntoOwned() Bytes { return b.ToOwned() }

func (b Bytes) Equal(other Bytes) bool { return bytes.Equal(b.data, other.data) }

// Compare orders two Bytes lexicographically by their underlying slices.
func (b Bytes) Compare(other Bytes) int { return bytes.Compare(b.data, other.data) }

func (b Bytes) HasPrefix(prefix Bytes) bool { return bytes.HasPrefix(b.data, prefix.data) }

func (b Bytes) String() string { return string(b.data) }

// Concat returns a new owned Bytes equal to the concatenation of parts.
func Concat(parts ...Bytes) Bytes {
	n := 0
	for _, p := range parts {
		n += p.Len()
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p.data...)
	}
	return Bytes{data: out, owned: true}
}
