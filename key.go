package fpta

// MaxKeyBytes is K, the maximum length of a key stored verbatim before
// folding kicks in for variable-width types (spec §3, "Key"). 511 matches the
// libmdbx/LMDB default maximum key size this design is built to sit on top
// of.
const MaxKeyBytes = 511

const foldHashLen = 8

// MaxFoldedKeyBytes is the length of a folded long key: K head/tail bytes
// plus the 8-byte hash of the other side.
const MaxFoldedKeyBytes = MaxKeyBytes + foldHashLen

// zeroLenKey is the process-wide sentinel for a valid, zero-length key
// (spec §9, "Global sentinel for zero-length keys"): a non-nil, zero-length
// byte slice, distinguishable from a nil slice (which means "no key" / a poor
// cursor) by identity of nil-ness rather than length.
var zeroLenKey = []byte{}

// Key is the encoded-key scratch area described in spec §3: a byte range
// (Bytes) that either points into the fixed-size `place` backing array or
// into caller-owned memory that outlives the current operation.
type Key struct {
	Bytes []byte
	place [MaxFoldedKeyBytes]byte
}

func (k *Key) reset() {
	k.Bytes = k.place[:0]
}

// own copies b into the key's private scratch area and points Bytes at the
// copy, so the caller's backing memory can be reused/mutated afterwards.
func (k *Key) own(b []byte) {
	if len(b) == 0 {
		k.Bytes = zeroLenKey
		return
	}
	n := copy(k.place[:], b)
	k.Bytes = k.place[:n]
}

// borrow points Bytes directly at caller-owned memory without copying.
func (k *Key) borrow(b []byte) {
	if len(b) == 0 {
		k.Bytes = zeroLenKey
		return
	}
	k.Bytes = b
}
