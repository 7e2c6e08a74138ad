package kv

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// memKV is a transient in-memory KV used by tests: one writer at a time,
// readers see a private snapshot taken at Begin, adapted from the teacher's
// snapshot-per-tx storage backend. It emulates DupSort with the same
// secondaryKey||primaryKey composite scheme as the bbolt backend, so tests
// written against one back the other identically.
type memKV struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tables  map[string]*memTable
	closed  bool
	writing bool
}

func NewMem() KV {
	s := &memKV{tables: make(map[string]*memTable)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memKV) Begin(writable bool) (Txn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("kv: closed")
	}
	if writable {
		for s.writing && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, fmt.Errorf("kv: closed")
		}
		s.writing = true
	}
	snap := make(map[string]*memTable, len(s.tables))
	for k, t := range s.tables {
		snap[k] = t.clone()
	}
	return &memTxn{base: s, writable: writable, tables: snap}, nil
}

func (s *memKV) Batch(fn func(Txn) error) error {
	tx, err := s.Begin(true)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *memKV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}

func (s *memKV) Size() int64 { return 0 }

type memTxn struct {
	base     *memKV
	writable bool
	tables   map[string]*memTable
	closed   bool
}

func (tx *memTxn) Writable() bool { return tx.writable }

func (tx *memTxn) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writing = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTxn) SubDB(name string, flags SubDBFlags) (SubDB, error) {
	t := tx.tables[name]
	if t == nil {
		if !flags.Has(Create) {
			return nil, ErrSubDBNotFound
		}
		t = &memTable{flags: flags}
		tx.tables[name] = t
	}
	return &memSubDB{tx: tx, t: t}, nil
}

func (tx *memTxn) DropSubDB(name string) error {
	if !tx.writable {
		return fmt.Errorf("kv: tx not writable")
	}
	if tx.tables[name] == nil {
		return ErrSubDBNotFound
	}
	delete(tx.tables, name)
	return nil
}

func (tx *memTxn) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return fmt.Errorf("kv: tx not writable")
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return fmt.Errorf("kv: closed")
	}
	tx.base.tables = tx.tables
	tx.closeLocked()
	return nil
}

func (tx *memTxn) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

type memTable struct {
	flags SubDBFlags
	items []memPair // sorted by physical key
}

type memPair struct {
	key   []byte
	value []byte
}

func (t *memTable) clone() *memTable {
	if t == nil {
		return nil
	}
	out := &memTable{flags: t.flags, items: make([]memPair, len(t.items))}
	for i, p := range t.items {
		out.items[i] = memPair{key: slices.Clone(p.key), value: slices.Clone(p.value)}
	}
	return out
}

func (t *memTable) find(key []byte) (idx int, ok bool) {
	i := sort.Search(len(t.items), func(i int) bool {
		return bytes.Compare(t.items[i].key, key) >= 0
	})
	if i < len(t.items) && bytes.Equal(t.items[i].key, key) {
		return i, true
	}
	return i, false
}

type memSubDB struct {
	tx *memTxn
	t  *memTable
}

func (s *memSubDB) Flags() SubDBFlags { return s.t.flags }
func (s *memSubDB) dup() bool         { return s.t.flags.Has(DupSort) }

func (s *memSubDB) Get(key []byte) ([]byte, error) {
	if !s.dup() {
		if i, ok := s.t.find(key); ok {
			return s.t.items[i].value, nil
		}
		return nil, nil
	}
	i, _ := s.t.find(key)
	if i < len(s.t.items) && bytes.HasPrefix(s.t.items[i].key, key) {
		return s.t.items[i].value, nil
	}
	return nil, nil
}

func (s *memSubDB) Put(key, value []byte, flags PutFlags) error {
	if !s.tx.writable {
		return fmt.Errorf("kv: tx not writable")
	}
	if !s.dup() {
		i, ok := s.t.find(key)
		if ok {
			if flags.Has(NoOverwrite) {
				return fmt.Errorf("kv: key already exists")
			}
			s.t.items[i].value = slices.Clone(value)
			return nil
		}
		s.t.items = slices.Insert(s.t.items, i, memPair{key: slices.Clone(key), value: slices.Clone(value)})
		return nil
	}
	physKey := append(append([]byte(nil), key...), value...)
	i, ok := s.t.find(physKey)
	if ok {
		if flags.Has(NoDupData) || flags.Has(NoOverwrite) {
			return fmt.Errorf("kv: duplicate already exists")
		}
		s.t.items[i].value = slices.Clone(value)
		return nil
	}
	s.t.items = slices.Insert(s.t.items, i, memPair{key: physKey, value: slices.Clone(value)})
	return nil
}

func (s *memSubDB) Delete(key []byte) error {
	if !s.tx.writable {
		return fmt.Errorf("kv: tx not writable")
	}
	if !s.dup() {
		if i, ok := s.t.find(key); ok {
			s.t.items = slices.Delete(s.t.items, i, i+1)
		}
		return nil
	}
	i, _ := s.t.find(key)
	for i < len(s.t.items) && bytes.HasPrefix(s.t.items[i].key, key) {
		s.t.items = slices.Delete(s.t.items, i, i+1)
	}
	return nil
}

func (s *memSubDB) DeleteExact(key, value []byte) error {
	if !s.tx.writable {
		return fmt.Errorf("kv: tx not writable")
	}
	if !s.dup() {
		return s.Delete(key)
	}
	physKey := append(append([]byte(nil), key...), value...)
	if i, ok := s.t.find(physKey); ok {
		s.t.items = slices.Delete(s.t.items, i, i+1)
	}
	return nil
}

func (s *memSubDB) Cursor() (Cursor, error) {
	return &memCursor{tx: s.tx, t: s.t, dup: s.dup(), pos: -1}, nil
}

func (s *memSubDB) KeyCount() int64 { return int64(len(s.t.items)) }

type memCursor struct {
	tx  *memTxn
	t   *memTable
	dup bool
	pos int
}

func (c *memCursor) at(i int) ([]byte, []byte, bool) {
	if i < 0 || i >= len(c.t.items) {
		return nil, nil, false
	}
	return c.t.items[i].key, c.t.items[i].value, true
}

func (c *memCursor) split(k, v []byte) ([]byte, []byte) {
	if !c.dup || k == nil {
		return k, v
	}
	n := len(k) - len(v)
	if n < 0 {
		n = 0
	}
	return k[:n], k[n:]
}

func (c *memCursor) seekPhys(key []byte) (int, bool) {
	i := sort.Search(len(c.t.items), func(i int) bool {
		return bytes.Compare(c.t.items[i].key, key) >= 0
	})
	c.pos = i
	if i >= len(c.t.items) {
		return i, false
	}
	return i, true
}

func (c *memCursor) Get(op Op, key, value []byte) ([]byte, []byte, error) {
	switch op {
	case OpFirst:
		c.pos = 0
		k, v, _ := c.at(0)
		k, v = c.split(k, v)
		return k, v, nil
	case OpLast:
		c.pos = len(c.t.items) - 1
		k, v, _ := c.at(c.pos)
		k, v = c.split(k, v)
		return k, v, nil
	case OpNext:
		c.pos++
		k, v, _ := c.at(c.pos)
		k, v = c.split(k, v)
		return k, v, nil
	case OpPrev:
		c.pos--
		k, v, _ := c.at(c.pos)
		k, v = c.split(k, v)
		return k, v, nil
	case OpSetRange:
		c.seekPhys(key)
		k, v, _ := c.at(c.pos)
		k, v = c.split(k, v)
		return k, v, nil
	case OpSet:
		i, ok := c.seekPhys(key)
		if !ok {
			return nil, nil, nil
		}
		k, v, _ := c.at(i)
		sk, sv := c.split(k, v)
		if sk == nil || !bytes.Equal(sk, key) {
			return nil, nil, nil
		}
		return sk, sv, nil
	case OpNextNoDup:
		return c.nextNoDup()
	case OpPrevNoDup:
		return c.prevNoDup()
	case OpNextDup:
		return c.stepDup(key, +1)
	case OpPrevDup:
		return c.stepDup(key, -1)
	case OpGetBoth, OpGetBothRange:
		physKey := append(append([]byte(nil), key...), value...)
		i, ok := c.seekPhys(physKey)
		if !ok {
			return nil, nil, nil
		}
		k, v, _ := c.at(i)
		sk, sv := c.split(k, v)
		if sk == nil || !bytes.Equal(sk, key) {
			return nil, nil, nil
		}
		if op == OpGetBoth && !bytes.Equal(sv, value) {
			return nil, nil, nil
		}
		return sk, sv, nil
	case OpGetCurrent:
		k, v, _ := c.at(c.pos)
		k, v = c.split(k, v)
		return k, v, nil
	default:
		return nil, nil, fmt.Errorf("kv: unknown opcode %d", op)
	}
}

func (c *memCursor) nextNoDup() ([]byte, []byte, error) {
	k, v, ok := c.at(c.pos)
	if !ok {
		return c.Get(OpFirst, nil, nil)
	}
	sk, _ := c.split(k, v)
	probe := append([]byte(nil), sk...)
	if !incBytes(probe) {
		c.pos = len(c.t.items)
		return nil, nil, nil
	}
	i, ok2 := c.seekPhys(probe)
	if !ok2 {
		return nil, nil, nil
	}
	nk, nv, _ := c.at(i)
	rk, rv := c.split(nk, nv)
	return rk, rv, nil
}

func (c *memCursor) prevNoDup() ([]byte, []byte, error) {
	k, v, ok := c.at(c.pos)
	if !ok {
		return c.Get(OpLast, nil, nil)
	}
	sk, _ := c.split(k, v)
	probe := append([]byte(nil), sk...)
	if !decBytes(probe) {
		c.pos = -1
		return nil, nil, nil
	}
	i, _ := c.seekPhys(probe)
	// i is the first physical key >= probe. If its secondary key is exactly
	// probe, the cursor stays there, on that group's first member (as the
	// bbolt backend does). Otherwise, for fixed-width keys, i is the first
	// member of the current group and the cursor steps back one entry, onto
	// the last member of the previous group.
	if nk, nv, ok := c.at(i); ok {
		if rk, rv := c.split(nk, nv); bytes.Equal(rk, probe) {
			c.pos = i
			return rk, rv, nil
		}
	}
	c.pos = i - 1
	nk, nv, ok := c.at(c.pos)
	if !ok {
		c.pos = -1
		return nil, nil, nil
	}
	rk, rv := c.split(nk, nv)
	return rk, rv, nil
}

// stepDup implements mdbx's NEXT_DUP/PREV_DUP (dir=+1/-1): a step that finds
// no further member of the same dup group must leave the cursor exactly
// where it was, not walk onto the neighboring group's first entry.
func (c *memCursor) stepDup(secondaryKey []byte, dir int) ([]byte, []byte, error) {
	orig := c.pos
	c.pos += dir
	k, v, ok := c.at(c.pos)
	if !ok {
		c.pos = orig
		return nil, nil, nil
	}
	sk, sv := c.split(k, v)
	if !bytes.Equal(sk, secondaryKey) {
		c.pos = orig
		return nil, nil, nil
	}
	return sk, sv, nil
}

func (c *memCursor) Put(key, value []byte, flags PutFlags) error {
	if !c.tx.writable {
		return fmt.Errorf("kv: tx not writable")
	}
	physKey := key
	if c.dup {
		physKey = append(append([]byte(nil), key...), value...)
	}
	i, ok := c.t.find(physKey)
	if ok {
		c.t.items[i].value = slices.Clone(value)
		return nil
	}
	c.t.items = slices.Insert(c.t.items, i, memPair{key: slices.Clone(physKey), value: slices.Clone(value)})
	return nil
}

func (c *memCursor) Delete() error {
	if !c.tx.writable {
		return fmt.Errorf("kv: tx not writable")
	}
	if c.pos < 0 || c.pos >= len(c.t.items) {
		return nil
	}
	c.t.items = slices.Delete(c.t.items, c.pos, c.pos+1)
	c.pos--
	return nil
}

func (c *memCursor) Close() error { return nil }
