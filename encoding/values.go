package encoding

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// ValueCategory tags which attribute value encoding a byte string uses
// (spec.md §3 "Attribute value encoding").
type ValueCategory uint8

const (
	CategoryBoolean ValueCategory = iota
	CategoryInteger
	CategoryDouble
	CategoryDecimal
	CategoryDate
	CategoryDateTime
	CategoryDateTimeTZ
	CategoryDuration
	CategoryString
	CategoryStruct
)

// EncodeBoolean is a 1-byte order-preserving encoding.
func EncodeBoolean(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func DecodeBoolean(b []byte) bool { return b[0] != 0 }

// EncodeInteger flips the sign bit of the two's-complement big-endian
// representation so unsigned byte order matches signed numeric order,
// per spec.md §3 "integer".
func EncodeInteger(v int64) []byte {
	u := uint64(v) ^ (1 << 63)
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, u)
	return out
}

func DecodeInteger(b []byte) int64 {
	u := binary.BigEndian.Uint64(b) ^ (1 << 63)
	return int64(u)
}

// EncodeDouble rewrites IEEE-754 sign/magnitude bits so unsigned byte order
// matches numeric order, per spec.md §3 "double". Negative-zero is
// canonicalized to positive-zero so -0.0 and 0.0 encode identically.
func EncodeDouble(v float64) []byte {
	if v == 0 {
		v = 0 // canonicalize -0.0
	}
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		// Negative: flip every bit so larger magnitude (more negative) sorts
		// smaller, and negatives as a whole sort below all positives.
		bits = ^bits
	} else {
		// Positive (or zero): flip only the sign bit so positives sort
		// above all negatives.
		bits |= 1 << 63
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, bits)
	return out
}

func DecodeDouble(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

// decimalScale is the fixed fractional scale used by EncodeDecimal. Values
// are separated into a signed integer part and an unsigned fractional part
// scaled to this many places, each encoded order-preservingly and
// concatenated -- integer part dominates ordering, fractional part
// tie-breaks within equal integer parts.
const decimalScale = 9

// EncodeDecimal produces a 16-byte order-preserving key: 8 bytes integer
// part (sign-bit-flipped, as EncodeInteger) followed by 8 bytes fractional
// part scaled to 1e9, always a non-negative amount. The integer part is the
// floor of the value: a negative value with a fraction borrows one from the
// integer part and stores 1e9 minus its fraction (-1.25 becomes -2 and
// 0.75), so a larger fraction always means a larger value.
func EncodeDecimal(d decimal.Decimal) []byte {
	neg := d.Sign() < 0
	abs := d.Abs()
	intPart := abs.Truncate(0)
	frac := abs.Sub(intPart).Shift(decimalScale).Round(0)

	intVal := intPart.IntPart()
	fracVal := frac.IntPart()
	if neg {
		intVal = -intVal
		if fracVal != 0 {
			intVal-- // borrow: e.g. -1.25 = intPart -2, frac 0.75 in magnitude terms
			fracVal = (1_000_000_000) - fracVal
		}
	}
	out := make([]byte, 16)
	copy(out[0:8], EncodeInteger(intVal))
	binary.BigEndian.PutUint64(out[8:16], uint64(fracVal))
	return out
}

func DecodeDecimal(b []byte) decimal.Decimal {
	intVal := DecodeInteger(b[0:8])
	fracVal := binary.BigEndian.Uint64(b[8:16])
	whole := decimal.NewFromInt(intVal)
	fracDec := decimal.NewFromInt(int64(fracVal)).Shift(-decimalScale)
	return whole.Add(fracDec)
}

// EncodeDate/DateTime encode Unix-epoch-relative counts big-endian
// sign-flipped, matching EncodeInteger's order-preservation.
func EncodeDate(t time.Time) []byte {
	days := t.UTC().Truncate(24 * time.Hour).Unix() / int64((24 * time.Hour).Seconds())
	return EncodeInteger(days)
}

func DecodeDate(b []byte) time.Time {
	days := DecodeInteger(b)
	return time.Unix(days*int64((24*time.Hour).Seconds()), 0).UTC()
}

func EncodeDateTime(t time.Time) []byte {
	return EncodeInteger(t.UTC().UnixNano())
}

func DecodeDateTime(b []byte) time.Time {
	return time.Unix(0, DecodeInteger(b)).UTC()
}

// EncodeDateTimeTZ appends the IANA zone name after the order-preserving
// instant so two datetimes at the same instant in different zones still
// sort by instant first, matching spec.md's "byte order equals semantic
// order" invariant when semantic order is defined as absolute-instant order.
func EncodeDateTimeTZ(t time.Time) []byte {
	instant := EncodeInteger(t.UTC().UnixNano())
	zone, _ := t.Zone()
	return append(instant, []byte(zone)...)
}

// EncodeDuration encodes a strictly non-negative duration (spec.md §7
// "negative-duration" is an execution error, never an encodable value) as
// sign-flipped nanoseconds.
func EncodeDuration(d time.Duration) []byte {
	if d < 0 {
		panic("encoding: duration must be non-negative")
	}
	return EncodeInteger(int64(d))
}

func DecodeDuration(b []byte) time.Duration {
	return time.Duration(DecodeInteger(b))
}

// EncodeStringInline NFC-normalizes s (so combining-character variants of
// equal strings always encode identically, per SPEC_FULL §11,
// golang.org/x/text/unicode/norm) and returns it followed by a single 0x00
// terminator, so the byte order of two encodings matches the order of the
// normalized strings. Only valid for len(s) <= LongStringThreshold; callers
// must route longer strings through EncodeStringLongKey instead.
func EncodeStringInline(s string) []byte {
	normalized := norm.NFC.String(s)
	out := make([]byte, 0, len(normalized)+1)
	out = append(out, normalized...)
	return append(out, 0)
}

func DecodeStringInline(b []byte) string {
	return string(b[:len(b)-1])
}

// EncodeStringLongKey builds the hash+tiebreaker vertex key for a string
// above LongStringThreshold (spec.md §4.4): xxhash64 of the NFC-normalized
// bytes, followed by a tiebreaker distinguishing hash collisions. The full
// string is stored as the vertex's value, not in the key.
func EncodeStringLongKey(s string, tiebreaker uint16) []byte {
	normalized := norm.NFC.String(s)
	h := xxhash.Sum64String(normalized)
	out := make([]byte, 10)
	binary.BigEndian.PutUint64(out[0:8], h)
	binary.BigEndian.PutUint16(out[8:10], tiebreaker)
	return out
}
