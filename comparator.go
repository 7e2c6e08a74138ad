package fpta

import "bytes"

// CompareFunc orders two encoded keys the same way the underlying storage
// engine's cursor does. The registry in spec §4.3 conceptually assigns one
// comparator per index storage class (obverse fixed-width, obverse
// variable-width, reverse of each, unordered/hashed, nested-tuple); this
// engine collapses all of them onto a single implementation because
// EncodeKey already emits order-preserving bytes for every case (offset
// binary for signed integers, sign-flipped IEEE754 bits for floats, raw
// bytes for short obverse strings, byte-reversal for reverse-ordered keys).
// A plain lexicographic byte compare over that output reproduces the
// intended order for every class except nested-tuple, which has no encoding
// to begin with and never reaches a comparator.
type CompareFunc func(a, b []byte) int

// byteCompare is the sole comparator this engine ships: bytes.Compare over
// already order-normalized key bytes.
func byteCompare(a, b []byte) int { return bytes.Compare(a, b) }

// ComparatorFor returns the comparator that applies to col's index. It never
// varies by column today, but the cursor (range clipping, Locate,
// UpdateCurrent) goes through this indirection rather than calling
// bytes.Compare directly, so a future non-byte-comparable class (a real
// nested-tuple comparator) has one place to plug in.
func ComparatorFor(col *Column) (CompareFunc, error) {
	kind := col.shove.IndexKind()
	if !kind.Indexed() {
		return nil, newErr(ErrNoIndex, "comparator", "column is not indexed").WithColumn(col)
	}
	if col.shove.Type() == TNestedTuple && kind.Ordered() {
		return nil, newErr(ErrNotImplemented, "comparator", "nested-tuple comparator is not implemented").WithColumn(col)
	}
	return byteCompare, nil
}
