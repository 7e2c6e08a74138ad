package fpta

import "math"

// Kind tags the variant held by a Value (spec §3, "Value").
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindUint
	KindFloat
	KindTime
	KindString
	KindBinary
	KindShoved
	// KindBegin and KindEnd are sentinels usable only as open range bounds
	// on a cursor; they are never valid operand values (spec §4.1).
	KindBegin
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindShoved:
		return "shoved"
	case KindBegin:
		return "begin"
	case KindEnd:
		return "end"
	default:
		return "invalid"
	}
}

// Value is the tagged variant used at the API boundary (spec §3). Zero value
// is Null.
type Value struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	b    []byte
}

func Null() Value  { return Value{kind: KindNull} }
func Begin() Value { return Value{kind: KindBegin} }
func End() Value   { return Value{kind: KindEnd} }

func Int(v int64) Value    { return Value{kind: KindInt, i: v} }
func Uint(v uint64) Value  { return Value{kind: KindUint, u: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Time holds a fixed-point 64-bit datetime tick count, per spec §3.
func Time(ticks int64) Value { return Value{kind: KindTime, i: ticks} }

func Str(v string) Value { return Value{kind: KindString, b: []byte(v)} }
func Bin(v []byte) Value { return Value{kind: KindBinary, b: v} }

// shoved constructs a Value that decode produced from a folded long key; the
// caller must treat the bytes as an opaque identifier (spec §4.2 decoding).
func shoved(raw []byte) Value { return Value{kind: KindShoved, b: raw} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) Int() int64 { return v.i }
func (v Value) Uint() uint64 { return v.u }
func (v Value) Float() float64 { return v.f }
func (v Value) TimeTicks() int64 { return v.i }
func (v Value) Bytes() []byte { return v.b }
func (v Value) String() string { return string(v.b) }

func (v Value) IsSentinel() bool { return v.kind == KindBegin || v.kind == KindEnd }

// coerceInt returns v widened/narrowed to an int64 usable as the payload for
// an integer column of the given width, applying spec §4.1's signed/unsigned
// interchange-with-range-check rule.
func coerceInt(col *Column, v Value) (int64, error) {
	typ := col.shove.Type()
	lo, hi := typ.intRange()
	switch v.kind {
	case KindInt:
		if v.i < lo || v.i > hi {
			return 0, newErr(ErrValueOutOfRange, "encode", "%d out of range for %v", v.i, typ).WithColumn(col)
		}
		return v.i, nil
	case KindUint:
		if v.u > uint64(hi) {
			return 0, newErr(ErrValueOutOfRange, "encode", "%d out of range for %v", v.u, typ).WithColumn(col)
		}
		return int64(v.u), nil
	default:
		return 0, newErr(ErrTypeMismatch, "encode", "%v value cannot fill %v column", v.kind, typ).WithColumn(col)
	}
}

func coerceUint(col *Column, v Value) (uint64, error) {
	typ := col.shove.Type()
	_, hi := typ.uintRange()
	switch v.kind {
	case KindUint:
		if v.u > hi {
			return 0, newErr(ErrValueOutOfRange, "encode", "%d out of range for %v", v.u, typ).WithColumn(col)
		}
		return v.u, nil
	case KindInt:
		if v.i < 0 || uint64(v.i) > hi {
			return 0, newErr(ErrValueOutOfRange, "encode", "%d out of range for %v", v.i, typ).WithColumn(col)
		}
		return uint64(v.i), nil
	default:
		return 0, newErr(ErrTypeMismatch, "encode", "%v value cannot fill %v column", v.kind, typ).WithColumn(col)
	}
}

// coerceFloat validates and normalizes a float per spec §4.1/§4.2/§8.5:
// NaN is rejected, subnormals and -0 are normalized to +0, infinities pass
// through unchanged.
func coerceFloat(col *Column, v Value) (float64, error) {
	if v.kind != KindFloat {
		return 0, newErr(ErrTypeMismatch, "encode", "%v value cannot fill float column", v.kind).WithColumn(col)
	}
	f := v.f
	if math.IsNaN(f) {
		return 0, newErr(ErrValueOutOfRange, "encode", "NaN is not a valid key value").WithColumn(col)
	}
	if f == 0 || isSubnormal(f) {
		return 0, nil
	}
	if col.shove.Type() == TFloat32 {
		f32 := float32(f)
		if math.IsInf(float64(f32), 0) && !math.IsInf(f, 0) {
			return 0, newErr(ErrValueOutOfRange, "encode", "%v overflows float32", f).WithColumn(col)
		}
		if math.Float32bits(f32)&0x7F800000 == 0 {
			return 0, nil // zero or subnormal once narrowed to float32
		}
	}
	return f, nil
}

// isSubnormal reports whether f is a subnormal (denormal) float64: its
// exponent bits are all zero but its mantissa is nonzero.
func isSubnormal(f float64) bool {
	bits := math.Float64bits(f)
	exp := (bits >> 52) & 0x7FF
	mantissa := bits & ((1 << 52) - 1)
	return exp == 0 && mantissa != 0
}

// compatible implements the column-type/value-type compatibility matrix from
// spec §4.1, used before attempting to encode a key.
func compatible(col *Column, v Value) error {
	typ := col.shove.Type()
	switch v.kind {
	case KindNull, KindBegin, KindEnd:
		return newErr(ErrInvalidArgument, "encode", "%v is not a valid operand value", v.kind).WithColumn(col)
	case KindShoved:
		kind := col.shove.IndexKind()
		if kind.Unordered() {
			return nil
		}
		if kind.Ordered() && typ.IsVariable() {
			return nil
		}
		return newErr(ErrTypeMismatch, "encode", "shoved value only valid for a long-key-capable index").WithColumn(col)
	}
	switch typ {
	case TUint16, TUint32, TUint64:
		if v.kind != KindInt && v.kind != KindUint {
			return newErr(ErrTypeMismatch, "encode", "%v does not match %v column", v.kind, typ).WithColumn(col)
		}
	case TInt32, TInt64, TDateTime:
		if v.kind != KindInt && v.kind != KindUint && !(typ == TDateTime && v.kind == KindTime) {
			return newErr(ErrTypeMismatch, "encode", "%v does not match %v column", v.kind, typ).WithColumn(col)
		}
	case TFloat32, TFloat64:
		if v.kind != KindFloat {
			return newErr(ErrTypeMismatch, "encode", "%v does not match %v column", v.kind, typ).WithColumn(col)
		}
	case TCString:
		if v.kind != KindString {
			return newErr(ErrTypeMismatch, "encode", "only string values match a cstr column").WithColumn(col)
		}
	case TOpaque, TNestedTuple:
		if v.kind != KindBinary {
			return newErr(ErrTypeMismatch, "encode", "only binary values match an opaque column").WithColumn(col)
		}
	case TFixed96, TFixed128, TFixed160, TFixed256:
		if v.kind != KindBinary {
			return newErr(ErrTypeMismatch, "encode", "only binary values match a fixed-width column").WithColumn(col)
		}
		if n, want := len(v.b), typ.fixedLen(); n != want {
			return newErr(ErrDataLengthMismatch, "encode", "fixed column wants %d bytes, got %d", want, n).WithColumn(col)
		}
	}
	return nil
}
