package fpta

import (
	"bytes"
	"strings"
	"testing"
)

func mustColumn(t *testing.T, typ ColumnType, kind IndexKind) *Column {
	t.Helper()
	tbl := &Table{Name: "t", byName: map[string]*Column{}}
	c := &Column{table: tbl, Name: "c", shove: MakeShove(typ, kind, 0)}
	tbl.columns = []*Column{c}
	if kind.IsPrimary() {
		tbl.primary = c
	}
	return c
}

func TestEncodeDecodeRoundTripNumerics(t *testing.T) {
	cases := []struct {
		typ ColumnType
		val Value
	}{
		{TUint16, Uint(0)},
		{TUint16, Uint(65535)},
		{TUint32, Uint(4242)},
		{TUint64, Uint(1 << 40)},
		{TInt32, Int(-1)},
		{TInt32, Int(1 << 20)},
		{TInt64, Int(-(1 << 40))},
		{TFloat64, Float(3.5)},
		{TFloat64, Float(-3.5)},
		{TDateTime, Time(1700000000)},
	}
	for _, tc := range cases {
		col := mustColumn(t, tc.typ, PrimaryUnique)
		var k Key
		if err := EncodeKey(&k, col, tc.val, true); err != nil {
			t.Fatalf("EncodeKey(%v, %v) failed: %v", tc.typ, tc.val, err)
		}
		got, err := DecodeKey(col, k.Bytes)
		if err != nil {
			t.Fatalf("DecodeKey(%v) failed: %v", tc.typ, err)
		}
		if !valuesEqual(tc.val, got) {
			t.Fatalf("round-trip %v: got %+v, want %+v", tc.typ, got, tc.val)
		}
	}
}

func valuesEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInt, KindTime:
		return a.i == b.i
	case KindUint:
		return a.u == b.u
	case KindFloat:
		return a.f == b.f
	case KindString, KindBinary, KindShoved:
		return bytes.Equal(a.b, b.b)
	default:
		return true
	}
}

func TestOrderPreservingIntEncoding(t *testing.T) {
	col := mustColumn(t, TInt32, PrimaryUnique)
	var kNeg, kPos Key
	if err := EncodeKey(&kNeg, col, Int(-100), true); err != nil {
		t.Fatal(err)
	}
	if err := EncodeKey(&kPos, col, Int(100), true); err != nil {
		t.Fatal(err)
	}
	if bytes.Compare(kNeg.Bytes, kPos.Bytes) >= 0 {
		t.Fatalf("encode(-100) should sort before encode(100)")
	}
}

func TestOrderPreservingFloatEncoding(t *testing.T) {
	col := mustColumn(t, TFloat64, PrimaryUnique)
	vals := []float64{-100.5, -1, 0, 1, 100.5}
	var prev []byte
	for _, v := range vals {
		var k Key
		if err := EncodeKey(&k, col, Float(v), true); err != nil {
			t.Fatalf("encode(%v): %v", v, err)
		}
		if prev != nil && bytes.Compare(prev, k.Bytes) >= 0 {
			t.Fatalf("float encoding not ascending at %v", v)
		}
		prev = append([]byte(nil), k.Bytes...)
	}
}

func TestShortStringKeyRoundTrip(t *testing.T) {
	col := mustColumn(t, TCString, PrimaryUnique)
	var k Key
	if err := EncodeKey(&k, col, Str("hello"), true); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeKey(col, k.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind() != KindString || got.String() != "hello" {
		t.Fatalf("decode = %v %q, want string \"hello\"", got.Kind(), got.String())
	}
}

func TestLongKeyFoldsToShoved(t *testing.T) {
	col := mustColumn(t, TOpaque, PrimaryUnique)
	long := bytes.Repeat([]byte{0x42}, MaxKeyBytes+100)
	var k Key
	if err := EncodeKey(&k, col, Bin(long), true); err != nil {
		t.Fatal(err)
	}
	if len(k.Bytes) != MaxFoldedKeyBytes {
		t.Fatalf("folded key length = %d, want %d", len(k.Bytes), MaxFoldedKeyBytes)
	}
	got, err := DecodeKey(col, k.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind() != KindShoved {
		t.Fatalf("decode of folded key = %v, want shoved", got.Kind())
	}
}

func TestReverseVariableKeyIsByteReversed(t *testing.T) {
	col := mustColumn(t, TCString, PrimaryUnique|kindReverse)
	var k Key
	if err := EncodeKey(&k, col, Str("ab"), true); err != nil {
		t.Fatal(err)
	}
	if string(k.Bytes) != "ba" {
		t.Fatalf("reverse-encoded %q, want %q", k.Bytes, "ba")
	}
}

func TestUnorderedHashedKeyIsFixedWidth(t *testing.T) {
	col := mustColumn(t, TUint32, PrimaryUnordered)
	var k Key
	if err := EncodeKey(&k, col, Uint(7), true); err != nil {
		t.Fatal(err)
	}
	if len(k.Bytes) != 8 {
		t.Fatalf("hashed key length = %d, want 8", len(k.Bytes))
	}
}

func TestNestedTupleKeyNotImplemented(t *testing.T) {
	col := mustColumn(t, TNestedTuple, PrimaryUnique)
	var k Key
	err := EncodeKey(&k, col, Bin([]byte("x")), true)
	if err == nil {
		t.Fatalf("EncodeKey(nested-tuple) succeeded, wanted not-implemented")
	}
	if fe, ok := err.(*Error); !ok || fe.Kind != ErrNotImplemented {
		t.Fatalf("error = %v, wanted ErrNotImplemented", err)
	}
}

func TestDecodeKeyLengthMismatchIsCorrupted(t *testing.T) {
	col := mustColumn(t, TUint32, PrimaryUnique)
	_, err := DecodeKey(col, []byte{1, 2, 3})
	if err == nil {
		t.Fatalf("DecodeKey(wrong length) succeeded")
	}
	if !strings.Contains(err.Error(), "index-corrupted") {
		t.Fatalf("error = %v, wanted index-corrupted", err)
	}
}
