package encoding

import (
	"bytes"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestIntegerOrderPreservingRoundTrip(t *testing.T) {
	values := []int64{math.MinInt64, -1000, -1, 0, 1, 1000, math.MaxInt64}
	for i := 0; i < len(values); i++ {
		for j := 0; j < len(values); j++ {
			a, b := values[i], values[j]
			ea, eb := EncodeInteger(a), EncodeInteger(b)
			wantLess := a < b
			gotLess := bytes.Compare(ea, eb) < 0
			if wantLess != gotLess && a != b {
				t.Fatalf("order mismatch for %d vs %d", a, b)
			}
			if DecodeInteger(ea) != a {
				t.Fatalf("round trip failed for %d", a)
			}
		}
	}
}

func TestDoubleOrderPreservingRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		a := (r.Float64() - 0.5) * 1e12
		b := (r.Float64() - 0.5) * 1e12
		ea, eb := EncodeDouble(a), EncodeDouble(b)
		if (a < b) != (bytes.Compare(ea, eb) < 0) {
			t.Fatalf("order mismatch for %v vs %v", a, b)
		}
		if DecodeDouble(ea) != a {
			t.Fatalf("round trip failed for %v, got %v", a, DecodeDouble(ea))
		}
	}
}

func TestDoubleNegativeZeroCanonicalized(t *testing.T) {
	if !bytes.Equal(EncodeDouble(0.0), EncodeDouble(-0.0)) {
		t.Fatal("negative zero must encode identically to positive zero")
	}
}

func TestDecimalOrderPreserving(t *testing.T) {
	samples := []string{"-100.5", "-1.5", "-1.25", "-0.5", "-0.25", "0", "0.25", "0.5", "1.25", "100.5"}
	var decs []decimal.Decimal
	for _, s := range samples {
		d, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatal(err)
		}
		decs = append(decs, d)
	}
	for i := 0; i < len(decs); i++ {
		for j := i + 1; j < len(decs); j++ {
			ei, ej := EncodeDecimal(decs[i]), EncodeDecimal(decs[j])
			if bytes.Compare(ei, ej) >= 0 {
				t.Fatalf("expected %s < %s in byte order", samples[i], samples[j])
			}
		}
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, s := range []string{"-100.5", "-1.25", "0", "0.25", "1.25", "100.5"} {
		d, _ := decimal.NewFromString(s)
		got := DecodeDecimal(EncodeDecimal(d))
		if !got.Equal(d) {
			t.Fatalf("round trip %s -> %s", s, got.String())
		}
	}
}

func TestStringInlineRoundTrip(t *testing.T) {
	s := "hello, graph"
	got := DecodeStringInline(EncodeStringInline(s))
	if got != s {
		t.Fatalf("got %q want %q", got, s)
	}
}

func TestStringInlineOrderPreserving(t *testing.T) {
	a, b := "alice", "bob"
	if bytes.Compare(EncodeStringInline(a), EncodeStringInline(b)) >= 0 {
		t.Fatal("expected alice < bob")
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Nanosecond)
	got := DecodeDateTime(EncodeDateTime(now))
	if !got.Equal(now) {
		t.Fatalf("got %v want %v", got, now)
	}
}
