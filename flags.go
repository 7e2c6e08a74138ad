package fpta

import "github.com/magniff/libfpta/internal/kv"

// PrimaryFlags derives the sub-database flags for a table's primary index
// (spec §4.4): CREATE always; DUPSORT never (primary keys are unique by
// definition); INTEGERKEY when the primary column is a fixed-width unsigned
// integer (see isIntegerKeyEligible); REVERSEKEY when
// the primary index is declared reverse-ordered.
func PrimaryFlags(col *Column) kv.SubDBFlags {
	kind := col.shove.IndexKind()
	f := kv.Create
	if isIntegerKeyEligible(col.shove.Type()) {
		f |= kv.IntegerKey
	}
	if kind.Reverse() {
		f |= kv.ReverseKey
	}
	return f
}

// SecondaryFlags derives the sub-database flags for a secondary index (spec
// §4.4). DUPSORT is set whenever the index allows duplicate secondary keys
// (a non-unique index). When DUPSORT is set, two more flags describe the
// *primary* key stored as the duplicate's payload: DUPFIXED when every
// duplicate has the same encoded length (true whenever the primary column is
// fixed-width), and INTEGERDUP/REVERSEDUP mirroring INTEGERKEY/REVERSEKEY
// but applied to how duplicates within one secondary-key group sort against
// each other, driven by the primary column's own type and index kind.
func SecondaryFlags(secondary, primary *Column) kv.SubDBFlags {
	kind := secondary.shove.IndexKind()
	f := kv.Create
	if isIntegerKeyEligible(secondary.shove.Type()) {
		f |= kv.IntegerKey
	}
	if kind.Reverse() {
		f |= kv.ReverseKey
	}
	if !kind.IsDup() {
		return f
	}
	f |= kv.DupSort
	if primary.shove.Type().IsFixedWidth() {
		f |= kv.DupFixed
		if isIntegerKeyEligible(primary.shove.Type()) {
			f |= kv.IntegerDup
		}
	}
	if primary.shove.IndexKind().Reverse() {
		f |= kv.ReverseDup
	}
	return f
}

// isIntegerKeyEligible reports whether a column's canonical byte encoding is
// a plain big-endian integer that a backend with a native INTEGERKEY
// comparator could sort directly. Signed integers and datetime (offset
// binary) and floats (sign-flipped bits) use encodings that are
// order-preserving but not a native integer compare, so they're excluded.
func isIntegerKeyEligible(t ColumnType) bool {
	switch t {
	case TUint16, TUint32, TUint64:
		return true
	default:
		return false
	}
}
