package fpta

import (
	"encoding/binary"
	"math"
)

// EncodeKey implements the key codec from spec §4.2: it fills dst with the
// normalized key bytes for value v under column col's (type, index kind).
// If owning is true the caller may reuse/mutate the memory backing v after
// this call returns; EncodeKey then always copies into dst's own scratch
// area. If owning is false and the encoding is a direct byte view (a short
// variable-width obverse key), dst may borrow the caller's memory.
func EncodeKey(dst *Key, col *Column, v Value, owning bool) error {
	kind := col.shove.IndexKind()
	if !kind.Indexed() {
		return newErr(ErrNoIndex, "encode", "column is not indexed").WithColumn(col)
	}
	if err := compatible(col, v); err != nil {
		return err
	}

	if kind.Unordered() {
		raw, err := canonicalBytes(col, v)
		if err != nil {
			return err
		}
		var h [8]byte
		binary.BigEndian.PutUint64(h[:], hash64(raw))
		dst.own(h[:])
		return nil
	}

	typ := col.shove.Type()
	switch {
	case typ.IsFixedWidth() && typ.IsNumeric():
		raw, err := canonicalBytes(col, v)
		if err != nil {
			return err
		}
		dst.own(raw)
		return nil
	case typ == TNestedTuple:
		return newErr(ErrNotImplemented, "encode", "nested-tuple key derivation is not implemented").WithColumn(col)
	case typ.IsVariable():
		return encodeVariableKey(dst, col, v.Bytes(), kind.Reverse(), owning)
	default: // fixed-96..256
		if kind.Reverse() {
			var buf [MaxKeyBytes]byte
			reverseBytesInto(buf[:len(v.b)], v.b)
			dst.own(buf[:len(v.b)])
		} else if owning {
			dst.own(v.b)
		} else {
			dst.borrow(v.b)
		}
		return nil
	}
}

func encodeVariableKey(dst *Key, col *Column, raw []byte, reverse bool, owning bool) error {
	if len(raw) <= MaxKeyBytes {
		if reverse {
			var buf [MaxKeyBytes]byte
			reverseBytesInto(buf[:len(raw)], raw)
			dst.own(buf[:len(raw)])
		} else if owning {
			dst.own(raw)
		} else {
			dst.borrow(raw)
		}
		return nil
	}
	// Folding only makes sense for truly variable types; fixed-N never
	// exceeds K given today's largest fixed width (32 bytes), so reaching
	// here always means cstr/opaque.
	if reverse {
		dst.Bytes = foldReverse(dst.place[:0], raw)
	} else {
		dst.Bytes = foldObverse(dst.place[:0], raw)
	}
	return nil
}

func reverseBytesInto(dst, src []byte) {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
}

// canonicalBytes returns the order-preserving byte encoding used both as the
// ordered-numeric key and as the hash input for unordered indexes.
func canonicalBytes(col *Column, v Value) ([]byte, error) {
	typ := col.shove.Type()
	switch typ {
	case TUint16, TUint32:
		u, err := coerceUint(col, v)
		if err != nil {
			return nil, err
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(u))
		return b[:], nil
	case TUint64:
		u, err := coerceUint(col, v)
		if err != nil {
			return nil, err
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], u)
		return b[:], nil
	case TInt32:
		i, err := coerceInt(col, v)
		if err != nil {
			return nil, err
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(i)^0x80000000)
		return b[:], nil
	case TInt64:
		i, err := coerceInt(col, v)
		if err != nil {
			return nil, err
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(i)^0x8000000000000000)
		return b[:], nil
	case TDateTime:
		var ticks int64
		switch v.kind {
		case KindTime:
			ticks = v.TimeTicks()
		case KindInt:
			ticks = v.Int()
		case KindUint:
			ticks = int64(v.Uint())
		default:
			return nil, newErr(ErrTypeMismatch, "encode", "%v does not match datetime column", v.kind).WithColumn(col)
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(ticks)^0x8000000000000000)
		return b[:], nil
	case TFloat32:
		f, err := coerceFloat(col, v)
		if err != nil {
			return nil, err
		}
		bits := math.Float32bits(float32(f))
		if bits&0x80000000 != 0 {
			bits = ^bits
		} else {
			bits |= 0x80000000
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], bits)
		return b[:], nil
	case TFloat64:
		f, err := coerceFloat(col, v)
		if err != nil {
			return nil, err
		}
		bits := math.Float64bits(f)
		if bits&0x8000000000000000 != 0 {
			bits = ^bits
		} else {
			bits |= 0x8000000000000000
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bits)
		return b[:], nil
	case TCString:
		if v.kind != KindString {
			return nil, newErr(ErrTypeMismatch, "encode", "only string values may be hashed for a cstr column").WithColumn(col)
		}
		return v.Bytes(), nil
	case TOpaque, TFixed96, TFixed128, TFixed160, TFixed256:
		if v.kind != KindBinary {
			return nil, newErr(ErrTypeMismatch, "encode", "only binary values may be hashed for this column").WithColumn(col)
		}
		return v.Bytes(), nil
	case TNestedTuple:
		return nil, newErr(ErrNotImplemented, "encode", "nested-tuple key derivation is not implemented").WithColumn(col)
	default:
		return nil, newErr(ErrInternal, "encode", "unhandled column type %v", typ).WithColumn(col)
	}
}

// DecodeKey implements spec §4.2's decoding rules: fixed-width numerics
// recover exactly, short variable keys recover the original bytes, and
// max-length folded keys surface as KindShoved opaque identifiers. Any
// length mismatch against the declared type is index-corrupted.
func DecodeKey(col *Column, key []byte) (Value, error) {
	kind := col.shove.IndexKind()
	if !kind.Indexed() {
		return Value{}, newErr(ErrNoIndex, "decode", "column is not indexed").WithColumn(col)
	}
	if kind.Unordered() {
		if len(key) != foldHashLen {
			return Value{}, newErr(ErrIndexCorrupted, "decode", "unordered key must be %d bytes, got %d", foldHashLen, len(key)).WithColumn(col)
		}
		return shoved(append([]byte(nil), key...)), nil
	}

	typ := col.shove.Type()
	switch {
	case typ.IsFixedWidth() && typ.IsNumeric():
		return decodeFixedNumeric(col, typ, key)
	case typ == TNestedTuple:
		return Value{}, newErr(ErrNotImplemented, "decode", "nested-tuple key derivation is not implemented").WithColumn(col)
	case typ.IsVariable():
		return decodeVariableKey(col, key, kind.Reverse())
	default: // fixed-96..256
		want := typ.fixedLen()
		if len(key) != want {
			return Value{}, newErr(ErrIndexCorrupted, "decode", "fixed column wants %d bytes, got %d", want, len(key)).WithColumn(col)
		}
		if kind.Reverse() {
			out := make([]byte, len(key))
			reverseBytesInto(out, key)
			return Bin(out), nil
		}
		return Bin(append([]byte(nil), key...)), nil
	}
}

func decodeFixedNumeric(col *Column, typ ColumnType, key []byte) (Value, error) {
	want := typ.fixedLen()
	if len(key) != want {
		return Value{}, newErr(ErrIndexCorrupted, "decode", "%v key wants %d bytes, got %d", typ, want, len(key)).WithColumn(col)
	}
	switch typ {
	case TUint16:
		u := binary.BigEndian.Uint32(key)
		if u > math.MaxUint16 {
			return Value{}, newErr(ErrIndexCorrupted, "decode", "uint16 key out of range: %d", u).WithColumn(col)
		}
		return Uint(uint64(u)), nil
	case TUint32:
		return Uint(uint64(binary.BigEndian.Uint32(key))), nil
	case TUint64:
		return Uint(binary.BigEndian.Uint64(key)), nil
	case TInt32:
		u := binary.BigEndian.Uint32(key) ^ 0x80000000
		return Int(int64(int32(u))), nil
	case TInt64:
		u := binary.BigEndian.Uint64(key) ^ 0x8000000000000000
		return Int(int64(u)), nil
	case TDateTime:
		u := binary.BigEndian.Uint64(key) ^ 0x8000000000000000
		return Time(int64(u)), nil
	case TFloat32:
		bits := binary.BigEndian.Uint32(key)
		var orig uint32
		if bits&0x80000000 != 0 {
			orig = bits &^ 0x80000000
		} else {
			orig = ^bits
		}
		return Float(float64(math.Float32frombits(orig))), nil
	case TFloat64:
		bits := binary.BigEndian.Uint64(key)
		var orig uint64
		if bits&0x8000000000000000 != 0 {
			orig = bits &^ 0x8000000000000000
		} else {
			orig = ^bits
		}
		return Float(math.Float64frombits(orig)), nil
	default:
		return Value{}, newErr(ErrInternal, "decode", "unhandled numeric type %v", typ).WithColumn(col)
	}
}

func decodeVariableKey(col *Column, key []byte, reverse bool) (Value, error) {
	switch {
	case len(key) == MaxFoldedKeyBytes:
		return shoved(append([]byte(nil), key...)), nil
	case len(key) <= MaxKeyBytes:
		raw := key
		if reverse {
			out := make([]byte, len(key))
			reverseBytesInto(out, key)
			raw = out
		} else {
			raw = append([]byte(nil), key...)
		}
		if col.shove.Type() == TCString {
			return Str(string(raw)), nil
		}
		return Bin(raw), nil
	default:
		return Value{}, newErr(ErrIndexCorrupted, "decode", "key length %d is neither a valid short key nor a valid folded key", len(key)).WithColumn(col)
	}
}
