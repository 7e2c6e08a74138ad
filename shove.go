package fpta

import "math"

// ColumnType is the closed set of data types a column may hold (spec §3).
type ColumnType uint8

const (
	TUint16 ColumnType = iota
	TUint32
	TInt32
	TUint64
	TInt64
	TFloat32
	TFloat64
	TDateTime
	TCString
	TOpaque
	TFixed96
	TFixed128
	TFixed160
	TFixed256
	TNestedTuple
)

func (t ColumnType) String() string {
	switch t {
	case TUint16:
		return "uint16"
	case TUint32:
		return "uint32"
	case TInt32:
		return "int32"
	case TUint64:
		return "uint64"
	case TInt64:
		return "int64"
	case TFloat32:
		return "fp32"
	case TFloat64:
		return "fp64"
	case TDateTime:
		return "datetime"
	case TCString:
		return "cstr"
	case TOpaque:
		return "opaque"
	case TFixed96:
		return "fixed96"
	case TFixed128:
		return "fixed128"
	case TFixed160:
		return "fixed160"
	case TFixed256:
		return "fixed256"
	case TNestedTuple:
		return "nested-tuple"
	default:
		return "invalid"
	}
}

// IsFixedWidth reports whether the type has a single fixed byte width when
// stored as a key (numerics and the fixed-N binary blobs).
func (t ColumnType) IsFixedWidth() bool {
	switch t {
	case TUint16, TUint32, TInt32, TUint64, TInt64, TFloat32, TFloat64, TDateTime,
		TFixed96, TFixed128, TFixed160, TFixed256:
		return true
	default:
		return false
	}
}

// IsVariable reports whether the type's encoded length depends on the value
// (cstr, opaque, nested-tuple) and is therefore subject to long-key folding.
func (t ColumnType) IsVariable() bool {
	switch t {
	case TCString, TOpaque, TNestedTuple:
		return true
	default:
		return false
	}
}

func (t ColumnType) IsNumeric() bool {
	switch t {
	case TUint16, TUint32, TInt32, TUint64, TInt64, TFloat32, TFloat64, TDateTime:
		return true
	default:
		return false
	}
}

// fixedLen returns the storage width in bytes for fixed-width types. Zero for
// variable types.
func (t ColumnType) fixedLen() int {
	switch t {
	case TUint16, TUint32, TInt32:
		return 4 // uint16 is widened to 32 bits for storage, spec §4.2
	case TUint64, TInt64, TFloat64, TDateTime:
		return 8
	case TFloat32:
		return 4
	case TFixed96:
		return 12
	case TFixed128:
		return 16
	case TFixed160:
		return 20
	case TFixed256:
		return 32
	default:
		return 0
	}
}

func (t ColumnType) intRange() (lo, hi int64) {
	switch t {
	case TInt32:
		return math.MinInt32, math.MaxInt32
	case TInt64, TDateTime:
		return math.MinInt64, math.MaxInt64
	case TUint16:
		return 0, math.MaxUint16
	case TUint32:
		return 0, math.MaxUint32
	case TUint64:
		return 0, math.MaxInt64 // conservative: caller should use coerceUint for full range
	default:
		return 0, 0
	}
}

func (t ColumnType) uintRange() (lo, hi uint64) {
	switch t {
	case TUint16:
		return 0, math.MaxUint16
	case TUint32:
		return 0, math.MaxUint32
	case TUint64:
		return 0, math.MaxUint64
	default:
		return 0, 0
	}
}

// IndexKind is a bitmask combining the flags spec §3 lists for a column's
// index kind: none, or primary/secondary x unique/dup x ordered/unordered x
// obverse/reverse.
type IndexKind uint16

const (
	kindIndexed IndexKind = 1 << iota
	kindSecondary
	kindDup
	kindUnordered
	kindReverse
)

const IndexNone IndexKind = 0

// Convenience combinations used when declaring columns.
const (
	PrimaryUnique          = kindIndexed
	SecondaryUnique        = kindIndexed | kindSecondary
	SecondaryDup           = kindIndexed | kindSecondary | kindDup
	SecondaryUniqueRev     = kindIndexed | kindSecondary | kindReverse
	SecondaryDupRev        = kindIndexed | kindSecondary | kindDup | kindReverse
	PrimaryUnordered       = kindIndexed | kindUnordered
	SecondaryUnique_Hashed = kindIndexed | kindSecondary | kindUnordered
	SecondaryDup_Hashed    = kindIndexed | kindSecondary | kindDup | kindUnordered
)

func (k IndexKind) Indexed() bool    { return k&kindIndexed != 0 }
func (k IndexKind) IsPrimary() bool  { return k.Indexed() && k&kindSecondary == 0 }
func (k IndexKind) IsSecondary() bool { return k&kindSecondary != 0 }
func (k IndexKind) IsDup() bool      { return k&kindDup != 0 }
func (k IndexKind) IsUnique() bool   { return k.Indexed() && !k.IsDup() }
func (k IndexKind) Unordered() bool  { return k&kindUnordered != 0 }
func (k IndexKind) Ordered() bool    { return k.Indexed() && !k.Unordered() }
func (k IndexKind) Reverse() bool    { return k&kindReverse != 0 }

// Validate implements the mutual-compatibility invariant from spec §3:
// reverse requires ordered; unordered indexes forbid a declared reverse flag
// (hashed keys have no byte order to reverse).
func (k IndexKind) Validate() error {
	if k.Reverse() && k.Unordered() {
		return newErr(ErrInvalidArgument, "schema", "reverse flag requires an ordered index")
	}
	if k.Reverse() && !k.Indexed() {
		return newErr(ErrInvalidArgument, "schema", "reverse flag requires an index")
	}
	return nil
}

// Shove packs a column's data type, index kind and declaration order into a
// single stable identifier (spec §3, "Column descriptor").
type Shove uint64

func MakeShove(t ColumnType, kind IndexKind, order int) Shove {
	return Shove(uint64(t)&0xFF | (uint64(kind)&0xFFFF)<<8 | (uint64(uint32(order))&0xFFFFFFFF)<<24)
}

func (s Shove) Type() ColumnType     { return ColumnType(s & 0xFF) }
func (s Shove) IndexKind() IndexKind { return IndexKind((s >> 8) & 0xFFFF) }
func (s Shove) Order() int           { return int((s >> 24) & 0xFFFFFFFF) }

// Validate checks the index-kind rules from spec §3's invariants (reverse
// requires ordered, checked by IndexKind.Validate). It adds no type-specific
// rule: an ordered nested-tuple column is accepted here, and the
// not-implemented error comes later, from ComparatorFor and key encoding.
func (s Shove) Validate() error {
	kind := s.IndexKind()
	if err := kind.Validate(); err != nil {
		return err
	}
	if kind.Indexed() && s.Type() == TNestedTuple && kind.Ordered() {
		// Ordered nested-tuple keys require delegating to a tuple comparator
		// this core does not implement; still a legal declaration (spec
		// keeps not-implemented as a *derivation-time* error, not a schema
		// error), so nothing to reject here.
		_ = struct{}{}
	}
	return nil
}
