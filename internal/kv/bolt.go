package kv

import (
	"bytes"
	"fmt"
	"unsafe"

	"go.etcd.io/bbolt"
)

// boltKV adapts a *bbolt.DB to the KV contract. bbolt has no native DUPSORT,
// INTEGERKEY, REVERSEKEY, DUPFIXED, INTEGERDUP or REVERSEDUP. Only DupSort
// changes this backend's behavior (emulated as below); the other flags are
// accepted but change nothing, since the tabular layer above already hands
// it order-preserving key bytes (spec §4.2/§4.4).
//
// Under DupSort, the physical bbolt key is secondaryKey||primaryKey and the
// physical value is primaryKey alone. Splitting the two back apart needs no
// length prefix: it's simply k[:len(k)-len(v)] / k[len(k)-len(v):], and
// because Put always writes value==primaryKey, len(v) is always known before
// the split. A length-prefix scheme would have been simpler to split but
// would corrupt ordering across secondary keys of different lengths (raw
// concatenation is what makes Go's byte-wise bytes.Compare do the right
// "shorter loses ties" thing automatically).
type boltKV struct {
	bdb *bbolt.DB
}

func NewBolt(bdb *bbolt.DB) KV { return &boltKV{bdb: bdb} }

func (s *boltKV) Begin(writable bool) (Txn, error) {
	btx, err := s.bdb.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &boltTxn{btx: btx}, nil
}

func (s *boltKV) Batch(fn func(Txn) error) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return fn(&boltTxn{btx: btx})
	})
}

func (s *boltKV) Close() error { return s.bdb.Close() }

func (s *boltKV) Size() int64 {
	var n int64
	_ = s.bdb.View(func(tx *bbolt.Tx) error { n = tx.Size(); return nil })
	return n
}

type boltTxn struct {
	btx *bbolt.Tx
}

func (tx *boltTxn) Writable() bool { return tx.btx.Writable() }

func (tx *boltTxn) SubDB(name string, flags SubDBFlags) (SubDB, error) {
	nb := unsafeBytes(name)
	b := tx.btx.Bucket(nb)
	if b == nil {
		if !flags.Has(Create) {
			return nil, ErrSubDBNotFound
		}
		var err error
		b, err = tx.btx.CreateBucket(nb)
		if err != nil {
			return nil, err
		}
	}
	return &boltSubDB{b: b, flags: flags}, nil
}

func (tx *boltTxn) DropSubDB(name string) error {
	err := tx.btx.DeleteBucket(unsafeBytes(name))
	if err == bbolt.ErrBucketNotFound {
		return ErrSubDBNotFound
	}
	return err
}

func (tx *boltTxn) Commit() error { return tx.btx.Commit() }

func (tx *boltTxn) Rollback() error {
	err := tx.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

type boltSubDB struct {
	b     *bbolt.Bucket
	flags SubDBFlags
}

func (s *boltSubDB) Flags() SubDBFlags { return s.flags }

func (s *boltSubDB) dup() bool { return s.flags.Has(DupSort) }

func (s *boltSubDB) Get(key []byte) ([]byte, error) {
	if !s.dup() {
		return s.b.Get(key), nil
	}
	c := s.b.Cursor()
	k, v := c.Seek(key)
	if k == nil || !bytes.HasPrefix(k, key) {
		return nil, nil
	}
	return v, nil
}

func (s *boltSubDB) Put(key, value []byte, flags PutFlags) error {
	if !s.dup() {
		if flags.Has(NoOverwrite) && s.b.Get(key) != nil {
			return fmt.Errorf("kv: key already exists")
		}
		return s.b.Put(key, value)
	}
	physKey := append(append([]byte(nil), key...), value...)
	if flags.Has(NoDupData) || flags.Has(NoOverwrite) {
		if s.b.Get(physKey) != nil {
			return fmt.Errorf("kv: duplicate already exists")
		}
	}
	return s.b.Put(physKey, value)
}

func (s *boltSubDB) Delete(key []byte) error {
	if !s.dup() {
		return s.b.Delete(key)
	}
	c := s.b.Cursor()
	for k, _ := c.Seek(key); k != nil && bytes.HasPrefix(k, key); k, _ = c.Next() {
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

func (s *boltSubDB) DeleteExact(key, value []byte) error {
	if !s.dup() {
		return s.b.Delete(key)
	}
	physKey := append(append([]byte(nil), key...), value...)
	return s.b.Delete(physKey)
}

func (s *boltSubDB) Cursor() (Cursor, error) {
	return &boltCursor{c: s.b.Cursor(), dup: s.dup()}, nil
}

func (s *boltSubDB) KeyCount() int64 { return int64(s.b.Stats().KeyN) }

// boltCursor implements the opcode dispatch of the Cursor contract on top of
// bbolt's plain First/Last/Seek/Next/Prev, splitting the DupSort composite
// key back into (secondaryKey, primaryKey) on every read.
type boltCursor struct {
	c   *bbolt.Cursor
	dup bool

	// curK/curV mirror the physical key/value the underlying bbolt cursor
	// is currently parked on. bbolt.Cursor exposes no Key()/Value()
	// accessors (unlike mdbx's GET_CURRENT), so every movement method
	// below records its result here for later "current position" reads.
	curK, curV []byte
}

func (c *boltCursor) first() ([]byte, []byte) {
	c.curK, c.curV = c.c.First()
	return c.curK, c.curV
}

func (c *boltCursor) last() ([]byte, []byte) {
	c.curK, c.curV = c.c.Last()
	return c.curK, c.curV
}

func (c *boltCursor) next() ([]byte, []byte) {
	c.curK, c.curV = c.c.Next()
	return c.curK, c.curV
}

func (c *boltCursor) prev() ([]byte, []byte) {
	c.curK, c.curV = c.c.Prev()
	return c.curK, c.curV
}

func (c *boltCursor) seek(key []byte) ([]byte, []byte) {
	c.curK, c.curV = c.c.Seek(key)
	return c.curK, c.curV
}

func (c *boltCursor) split(k, v []byte) (key, val []byte) {
	if !c.dup || k == nil {
		return k, v
	}
	n := len(k) - len(v)
	if n < 0 {
		n = 0
	}
	return k[:n], k[n:]
}

func (c *boltCursor) Get(op Op, key, value []byte) ([]byte, []byte, error) {
	switch op {
	case OpFirst:
		k, v := c.split(c.first())
		return k, v, nil
	case OpLast:
		k, v := c.split(c.last())
		return k, v, nil
	case OpNext:
		k, v := c.split(c.next())
		return k, v, nil
	case OpPrev:
		k, v := c.split(c.prev())
		return k, v, nil
	case OpNextNoDup:
		return c.nextNoDup()
	case OpPrevNoDup:
		return c.prevNoDup()
	case OpNextDup:
		return c.nextDup(key)
	case OpPrevDup:
		return c.prevDup(key)
	case OpSet:
		if !c.dup {
			k, v := c.seek(key)
			if k == nil || !bytes.Equal(k, key) {
				return nil, nil, nil
			}
			return k, v, nil
		}
		k, v := c.seek(key)
		sk, sv := c.split(k, v)
		if sk == nil || !bytes.Equal(sk, key) {
			return nil, nil, nil
		}
		return sk, sv, nil
	case OpSetRange:
		k, v := c.split(c.seek(key))
		return k, v, nil
	case OpGetBoth:
		return c.getBoth(key, value, false)
	case OpGetBothRange:
		return c.getBoth(key, value, true)
	case OpGetCurrent:
		k, v := c.split(c.curK, c.curV)
		return k, v, nil
	default:
		return nil, nil, fmt.Errorf("kv: unknown opcode %d", op)
	}
}

func (c *boltCursor) nextNoDup() ([]byte, []byte, error) {
	if !c.dup {
		k, v := c.split(c.next())
		return k, v, nil
	}
	sk, _ := c.split(c.curK, c.curV)
	if sk == nil {
		k, v := c.split(c.first())
		return k, v, nil
	}
	probe := append([]byte(nil), sk...)
	if !incBytes(probe) {
		return nil, nil, nil
	}
	k, v := c.split(c.seek(probe))
	return k, v, nil
}

func (c *boltCursor) prevNoDup() ([]byte, []byte, error) {
	if !c.dup {
		k, v := c.split(c.prev())
		return k, v, nil
	}
	sk, _ := c.split(c.curK, c.curV)
	if sk == nil {
		k, v := c.split(c.last())
		return k, v, nil
	}
	probe := append([]byte(nil), sk...)
	if !decBytes(probe) {
		return nil, nil, nil
	}
	pk, pv := c.seek(probe)
	psk, _ := c.split(pk, pv)
	if psk != nil && bytes.Equal(psk, probe) {
		// landed exactly on a dup group with the decremented key; walk to
		// its first member by seeking the group start.
		return c.firstOfGroup(probe)
	}
	k, v := c.split(c.prev())
	return k, v, nil
}

func (c *boltCursor) firstOfGroup(secondaryKey []byte) ([]byte, []byte, error) {
	k, v := c.split(c.seek(secondaryKey))
	return k, v, nil
}

// nextDup/prevDup implement mdbx's NEXT_DUP/PREV_DUP: a step that finds no
// further member of the same dup group must leave the cursor exactly where
// it was, not on the neighboring group's first entry.
func (c *boltCursor) nextDup(secondaryKey []byte) ([]byte, []byte, error) {
	origPhys := append([]byte(nil), c.curK...)
	k, v := c.next()
	sk, sv := c.split(k, v)
	if sk == nil || !bytes.Equal(sk, secondaryKey) {
		if origPhys != nil {
			c.seek(origPhys)
		}
		return nil, nil, nil
	}
	return sk, sv, nil
}

func (c *boltCursor) prevDup(secondaryKey []byte) ([]byte, []byte, error) {
	origPhys := append([]byte(nil), c.curK...)
	k, v := c.prev()
	sk, sv := c.split(k, v)
	if sk == nil || !bytes.Equal(sk, secondaryKey) {
		if origPhys != nil {
			c.seek(origPhys)
		}
		return nil, nil, nil
	}
	return sk, sv, nil
}

func (c *boltCursor) getBoth(key, value []byte, rangeMatch bool) ([]byte, []byte, error) {
	physKey := append(append([]byte(nil), key...), value...)
	k, v := c.seek(physKey)
	sk, sv := c.split(k, v)
	if sk == nil || !bytes.Equal(sk, key) {
		return nil, nil, nil
	}
	if !rangeMatch && !bytes.Equal(sv, value) {
		return nil, nil, nil
	}
	return sk, sv, nil
}

func (c *boltCursor) Put(key, value []byte, flags PutFlags) error {
	if !c.dup {
		return c.c.Bucket().Put(key, value)
	}
	physKey := append(append([]byte(nil), key...), value...)
	return c.c.Bucket().Put(physKey, value)
}

func (c *boltCursor) Delete() error { return c.c.Delete() }

func (c *boltCursor) Close() error { return nil }

// incBytes/decBytes implement the successor/predecessor byte-string helpers
// used to step across duplicate-key groups without a native next-nodup: they
// mutate data in place and report whether the operation overflowed (all
// 0xFF) or underflowed (all 0x00).
func incBytes(data []byte) bool {
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] != 0xFF {
			for j := i; j < len(data); j++ {
				data[j]++
			}
			return true
		}
	}
	return false
}

func decBytes(data []byte) bool {
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] != 0 {
			for j := i; j < len(data); j++ {
				data[j]--
			}
			return true
		}
	}
	return false
}

func unsafeBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
