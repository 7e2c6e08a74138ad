package fpta

import (
	"github.com/magniff/libfpta/internal/kv"
)

// CursorState is the small state machine spec §4.6/§8's invariant 7
// requires: after any cursor call the cursor is positioned, at a defined
// EOF, or poor — never undefined.
type CursorState int

const (
	StatePoor CursorState = iota
	StatePositioned
	StateEOFAfterLast
	StateEOFBeforeFirst
)

// Cursor iterates a table's primary index or one of its secondary indexes,
// applying an optional [lo, hi) range clip and an optional row filter (spec
// §4.6). Bounds are compared as encoded bytes: EncodeKey already emits
// order-preserving bytes in the column's *declared* order (byte-reversed
// already, for a reverse index), so a plain ascending byte compare on
// encoded keys reflects declared order regardless of traversal direction.
// Direction only changes which KV opcodes drive iteration.
type Cursor struct {
	tx         *Tx
	col        *Column
	kvc        kv.Cursor
	descending bool
	filter     Predicate
	cmp        CompareFunc

	hasLo, hasHi   bool
	loKey, hiKey   []byte
	loIncl, hiIncl bool

	state  CursorState
	curKey []byte
	curVal []byte // primary cursor: row bytes. secondary cursor: primary key.
}

// CursorOpts configures OpenCursor.
type CursorOpts struct {
	Descending bool
	Lo, Hi     Value // Begin()/End() sentinels mean unbounded on that side
	HiIncl     bool  // default false: hi is exclusive; lo is always inclusive
	Filter     Predicate
	DontFetch  bool
}

// OpenCursor opens a cursor over col's index (spec §4.6, "Opening"). col may
// be a table's primary column or any of its secondary columns.
func (tx *Tx) OpenCursor(col *Column, opts CursorOpts) (*Cursor, error) {
	kind := col.shove.IndexKind()
	if !kind.Indexed() {
		return nil, newErr(ErrNoIndex, "cursor", "column is not indexed").WithColumn(col)
	}
	if kind.Unordered() && opts.Descending {
		return nil, newErr(ErrInvalidArgument, "cursor", "unordered index has no direction to descend").WithColumn(col)
	}

	var sdb kv.SubDB
	var err error
	if kind.IsPrimary() {
		sdb, err = tx.primaryDB(col.table)
	} else {
		sdb, err = tx.secondaryDB(col)
	}
	if err != nil {
		return nil, err
	}
	kvc, err := sdb.Cursor()
	if err != nil {
		return nil, err
	}
	cmp, err := ComparatorFor(col)
	if err != nil {
		return nil, err
	}

	c := &Cursor{
		tx: tx, col: col, kvc: kvc, descending: opts.Descending,
		filter: opts.Filter, state: StatePoor, cmp: cmp,
		loIncl: true, hiIncl: opts.HiIncl,
	}

	if opts.Lo.kind != KindNull && opts.Lo.kind != KindBegin {
		var k Key
		if err := EncodeKey(&k, col, opts.Lo, true); err != nil {
			return nil, err
		}
		c.hasLo = true
		c.loKey = append([]byte(nil), k.Bytes...)
	}
	if opts.Hi.kind != KindNull && opts.Hi.kind != KindEnd {
		var k Key
		if err := EncodeKey(&k, col, opts.Hi, true); err != nil {
			return nil, err
		}
		c.hasHi = true
		c.hiKey = append([]byte(nil), k.Bytes...)
	}

	if !opts.DontFetch {
		if opts.Descending {
			c.moveTo(kv.OpLast)
		} else {
			c.moveTo(kv.OpFirst)
		}
	}
	return c, nil
}

func (c *Cursor) State() CursorState { return c.state }

// inRange reports whether encoded key k satisfies the configured [lo, hi)
// bound (spec §8 invariant 6).
func (c *Cursor) inRange(k []byte) bool {
	if c.hasLo {
		cmp := c.cmp(k, c.loKey)
		if cmp < 0 || (cmp == 0 && !c.loIncl) {
			return false
		}
	}
	if c.hasHi {
		cmp := c.cmp(k, c.hiKey)
		if cmp > 0 || (cmp == 0 && !c.hiIncl) {
			return false
		}
	}
	return true
}

// pastRange reports whether k is on the far side of the range in the
// current traversal direction, meaning continued stepping that direction
// can never recover into range (used to short-circuit to EOF instead of
// scanning the whole sub-DB). Only unordered indexes ever "recover" after
// appearing out of range (their key space has no relation to iteration
// order), so this always returns false for them (spec §4.6 step 3).
func (c *Cursor) pastRange(k []byte) bool {
	if c.col.shove.IndexKind().Unordered() {
		return false
	}
	if c.descending {
		return c.hasLo && c.cmp(k, c.loKey) < 0
	}
	if !c.hasHi {
		return false
	}
	cmp := c.cmp(k, c.hiKey)
	return cmp > 0 || (cmp == 0 && !c.hiIncl)
}

func (c *Cursor) materialize(key, val []byte) (*Row, error) {
	t := c.col.table
	if c.col.shove.IndexKind().IsPrimary() {
		return decodeRow(t, val)
	}
	primary, err := c.tx.primaryDB(t)
	if err != nil {
		return nil, err
	}
	body, err := primary.Get(val)
	if err != nil {
		return nil, newErr(ErrInternal, "cursor", "primary lookup failed").WithTable(t).WithCause(err)
	}
	if body == nil {
		return nil, newErr(ErrIndexCorrupted, "cursor", "secondary index points at a missing primary row").WithColumn(c.col).WithKey(val)
	}
	return decodeRow(t, body)
}

// stepOp returns the KV opcode used to advance past a filter-rejected or
// out-of-range row: duplicates of the same key are skipped by promoting a
// plain next/prev to next-nodup/prev-nodup (spec §4.6 step 3).
func (c *Cursor) stepOp() kv.Op {
	if c.descending {
		return kv.OpPrevNoDup
	}
	return kv.OpNextNoDup
}

// plainStepOp is stepOp's non-dup-skipping counterpart: a single physical
// step. Used when the current row itself is being rejected (out-of-filter),
// as opposed to stepOp's out-of-range case, since a rejected row's sibling
// duplicates (same secondary key, different primary key) may still pass the
// filter (spec §4.6 step 5 vs. step 3).
func (c *Cursor) plainStepOp() kv.Op {
	if c.descending {
		return kv.OpPrev
	}
	return kv.OpNext
}

// moveTo runs the seek-and-step loop from spec §4.6 starting with opcode op.
func (c *Cursor) moveTo(op kv.Op) bool {
	return c.moveToSeek(op, nil, nil)
}

func (c *Cursor) moveToSeek(op kv.Op, seekKey, seekVal []byte) bool {
	for {
		k, v, err := c.kvc.Get(op, seekKey, seekVal)
		seekKey, seekVal = nil, nil // only the first iteration seeks; steps use plain motion opcodes
		if err != nil || k == nil {
			c.setEOF(op)
			return false
		}
		if c.pastRange(k) {
			c.setEOF(op)
			return false
		}
		if !c.inRange(k) {
			op = c.stepOp()
			continue
		}
		row, err := c.materialize(k, v)
		if err != nil {
			c.state = StatePoor
			return false
		}
		if c.filter != nil {
			ok, ferr := c.filter.Eval(row)
			if ferr != nil {
				c.state = StatePoor
				return false
			}
			if !ok {
				op = c.plainStepOp()
				continue
			}
		}
		c.curKey, c.curVal = k, v
		c.state = StatePositioned
		return true
	}
}

func (c *Cursor) setEOF(op kv.Op) {
	switch op {
	case kv.OpFirst, kv.OpNext, kv.OpNextNoDup, kv.OpNextDup:
		c.state = StateEOFAfterLast
	case kv.OpLast, kv.OpPrev, kv.OpPrevNoDup, kv.OpPrevDup:
		c.state = StateEOFBeforeFirst
	default:
		c.state = StatePoor
	}
	c.curKey, c.curVal = nil, nil
}

func (c *Cursor) MoveFirst() bool { return c.moveTo(c.firstOpAscending()) }
func (c *Cursor) MoveLast() bool  { return c.moveTo(c.lastOpAscending()) }

func (c *Cursor) firstOpAscending() kv.Op {
	if c.descending {
		return kv.OpLast
	}
	return kv.OpFirst
}
func (c *Cursor) lastOpAscending() kv.Op {
	if c.descending {
		return kv.OpFirst
	}
	return kv.OpLast
}

// Next advances in the cursor's configured direction.
func (c *Cursor) Next() bool {
	if c.descending {
		return c.moveTo(kv.OpPrev)
	}
	return c.moveTo(kv.OpNext)
}

// Prev steps against the cursor's configured direction.
func (c *Cursor) Prev() bool {
	if c.descending {
		return c.moveTo(kv.OpNext)
	}
	return c.moveTo(kv.OpPrev)
}

// Get returns the row the cursor currently sits on.
func (c *Cursor) Get() (*Row, error) {
	if c.state != StatePositioned {
		return nil, newErr(ErrCursorInvalid, "cursor", "not positioned").WithColumn(c.col)
	}
	return c.materialize(c.curKey, c.curVal)
}

// Count counts the current row (if positioned) plus every row Next reaches,
// up to limit (use a large limit for "count everything", per spec §8
// scenario A's count(∞)). It steps this cursor itself, so afterwards the
// cursor sits where counting stopped: callers that also want to keep
// iterating from the old position should reopen.
func (c *Cursor) Count(limit int) int {
	n := 0
	if c.state == StatePositioned {
		n = 1
	}
	for n < limit && c.Next() {
		n++
	}
	return n
}

// Locate implements spec §4.6's Locate for the "exact value" mode, the mode
// this engine's row-sample-free API surface actually needs: unique indexes
// seek directly to the key; non-unique indexes land on the first duplicate
// in ascending direction or, per scenario F, the *last* duplicate in
// descending direction.
func (c *Cursor) Locate(v Value) bool {
	var k Key
	if err := EncodeKey(&k, c.col, v, true); err != nil {
		c.state = StatePoor
		return false
	}
	kind := c.col.shove.IndexKind()
	if !c.moveToSeek(kv.OpSetRange, k.Bytes, nil) {
		return false
	}
	if c.cmp(c.curKey, k.Bytes) != 0 {
		c.state = StatePoor
		if !c.descending {
			c.setEOF(kv.OpNext)
		} else {
			c.setEOF(kv.OpPrev)
		}
		return false
	}
	if kind.IsDup() && c.descending {
		for {
			k2, v2, err := c.kvc.Get(kv.OpNextDup, c.curKey, nil)
			if err != nil || k2 == nil {
				break
			}
			c.curKey, c.curVal = k2, v2
		}
	}
	c.state = StatePositioned
	return true
}

// DeleteCurrent implements the cursor-delete algorithm of spec §4.6: the
// primary row and every secondary index entry pointing at it are removed,
// then the cursor repositions per direction.
func (c *Cursor) DeleteCurrent() error {
	if c.state != StatePositioned {
		return newErr(ErrCursorInvalid, "cursor", "not positioned").WithColumn(c.col)
	}
	t := c.col.table
	var pk []byte
	if c.col.shove.IndexKind().IsPrimary() {
		pk = c.curKey
	} else {
		pk = c.curVal
	}

	primary, err := c.tx.primaryDB(t)
	if err != nil {
		return err
	}
	body, err := primary.Get(pk)
	if err != nil {
		return newErr(ErrInternal, "cursor-delete", "primary lookup failed").WithTable(t).WithCause(err)
	}
	if body == nil {
		return newErr(ErrIndexCorrupted, "cursor-delete", "current row is already gone").WithTable(t).WithKey(pk)
	}
	oldRow, err := decodeRow(t, body)
	if err != nil {
		return err
	}

	for _, col := range t.Secondaries() {
		if col == c.col {
			continue
		}
		sdb, err := c.tx.secondaryDB(col)
		if err != nil {
			return newErr(ErrInconsistent, "cursor-delete", "secondary lookup failed").WithColumn(col).WithCause(err)
		}
		var key Key
		if err := EncodeKey(&key, col, oldRow.Get(col), true); err != nil {
			return newErr(ErrInconsistent, "cursor-delete", "secondary key derivation failed").WithColumn(col).WithCause(err)
		}
		if col.shove.IndexKind().IsDup() {
			err = sdb.DeleteExact(key.Bytes, pk)
		} else {
			err = sdb.Delete(key.Bytes)
		}
		if err != nil {
			return newErr(ErrInconsistent, "cursor-delete", "secondary delete failed").WithColumn(col).WithCause(err)
		}
	}

	if !c.col.shove.IndexKind().IsPrimary() {
		if err := c.kvc.Delete(); err != nil {
			return newErr(ErrInconsistent, "cursor-delete", "index delete failed").WithColumn(c.col).WithCause(err)
		}
	}
	if err := primary.Delete(pk); err != nil {
		return newErr(ErrInconsistent, "cursor-delete", "primary delete failed").WithTable(t).WithCause(err)
	}

	if c.descending {
		return c.rewindAfterDelete(kv.OpPrev)
	}
	return c.rewindAfterDelete(kv.OpNext)
}

func (c *Cursor) rewindAfterDelete(op kv.Op) error {
	c.state = StatePoor
	if c.moveTo(op) {
		return nil
	}
	if c.tx.db.opt.EnableReturnIntoRange && c.state != StatePositioned {
		// The deleted row was the last one left in this direction within
		// the configured range; wrap onto the opposite edge instead of
		// stopping at EOF, so any row still inside the range is not lost.
		var wrapOp kv.Op
		if c.descending {
			wrapOp = c.firstOpAscending()
		} else {
			wrapOp = c.lastOpAscending()
		}
		c.moveTo(wrapOp)
	}
	return nil
}

// UpdateCurrent implements spec §4.6's update-through-cursor: validate the
// cursor's own index key is unchanged, then diff every other secondary
// index and rewrite the primary row (and, if the primary key itself
// changed, the cursor's own secondary entry).
func (c *Cursor) UpdateCurrent(newRow *Row) error {
	if c.state != StatePositioned {
		return newErr(ErrCursorInvalid, "cursor", "not positioned").WithColumn(c.col)
	}
	t := c.col.table
	if newRow.table != t {
		return newErr(ErrColumnMissing, "cursor-update", "row belongs to a different table").WithTable(t)
	}

	var newIdxKey Key
	if err := EncodeKey(&newIdxKey, c.col, newRow.Get(c.col), true); err != nil {
		return err
	}
	if c.cmp(newIdxKey.Bytes, c.curKey) != 0 {
		// The cursor's own index key must stay put, unique or not.
		return newErr(ErrKeyMismatch, "cursor-update", "update must not change this cursor's key").WithColumn(c.col)
	}

	var oldPK []byte
	if c.col.shove.IndexKind().IsPrimary() {
		oldPK = c.curKey
	} else {
		oldPK = c.curVal
	}
	primary, err := c.tx.primaryDB(t)
	if err != nil {
		return err
	}
	body, err := primary.Get(oldPK)
	if err != nil || body == nil {
		return newErr(ErrIndexCorrupted, "cursor-update", "current row is gone").WithTable(t).WithKey(oldPK)
	}
	oldRow, err := decodeRow(t, body)
	if err != nil {
		return err
	}

	var newPK []byte
	if c.col.shove.IndexKind().IsPrimary() {
		newPK = newIdxKey.Bytes
	} else {
		var pkKey Key
		if err := EncodeKey(&pkKey, t.Primary(), newRow.Get(t.Primary()), true); err != nil {
			return err
		}
		newPK = pkKey.Bytes
	}

	// upsertSecondary is given both PKs so it also rewrites a dup index's
	// physical entry (which embeds the primary key) when newPK != oldPK, even
	// for a column whose own value did not change (this loop covers c.col
	// itself too, since it walks every secondary; no separate re-point of the
	// cursor's own entry is needed afterward).
	for _, col := range t.Secondaries() {
		if err := c.tx.upsertSecondary(col, oldPK, newPK, oldRow, newRow); err != nil {
			return newErr(ErrInconsistent, "cursor-update", "secondary upsert failed").WithColumn(col).WithCause(err)
		}
	}

	newBody, err := newRow.encode()
	if err != nil {
		return err
	}
	if byteCompare(newPK, oldPK) == 0 {
		if err := primary.Put(newPK, newBody, kv.Current); err != nil {
			return newErr(ErrInconsistent, "cursor-update", "primary rewrite failed").WithTable(t).WithCause(err)
		}
	} else {
		if err := primary.Delete(oldPK); err != nil {
			return newErr(ErrInconsistent, "cursor-update", "primary delete failed").WithTable(t).WithCause(err)
		}
		if err := primary.Put(newPK, newBody, kv.NoOverwrite); err != nil {
			return newErr(ErrInconsistent, "cursor-update", "primary insert failed").WithTable(t).WithCause(err)
		}
	}

	c.curKey = newIdxKey.Bytes
	c.curVal = newPK
	return nil
}
