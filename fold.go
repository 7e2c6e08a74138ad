package fpta

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// hash64 is the 64-bit hash used both for unordered (hashed) index keys and
// for folding the head/tail of over-long variable keys (spec §4.2).
func hash64(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// foldObverse implements the obverse fold layout from spec §4.2: the first K
// bytes of raw, followed by an 8-byte big-endian hash of the remainder.
func foldObverse(dst []byte, raw []byte) []byte {
	dst = dst[:0]
	dst = appendRaw(dst, raw[:MaxKeyBytes])
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], hash64(raw[MaxKeyBytes:]))
	dst = appendRaw(dst, h[:])
	return dst
}

// foldReverse implements the reverse fold layout from spec §4.2: an 8-byte
// big-endian hash of the prefix, followed by the last K bytes of raw.
func foldReverse(dst []byte, raw []byte) []byte {
	dst = dst[:0]
	n := len(raw)
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], hash64(raw[:n-MaxKeyBytes]))
	dst = appendRaw(dst, h[:])
	dst = appendRaw(dst, raw[n-MaxKeyBytes:])
	return dst
}
