// Package kv is the embedded key-value engine contract the tabular layer
// sits on (spec §5/§6): named sub-databases holding sorted byte keys, with
// enough flags and cursor opcodes to emulate the DUPSORT/INTEGERKEY/
// REVERSEKEY/DUPFIXED/INTEGERDUP/REVERSEDUP behavior of an LMDB/libmdbx-style
// store on top of a backend, such as bbolt, that only understands "sorted
// buckets of byte strings".
package kv

import "errors"

// ErrSubDBNotFound is returned by Txn.SubDB when no sub-database open flag
// was set and the sub-database doesn't already exist.
var ErrSubDBNotFound = errors.New("kv: sub-database not found")

// SubDBFlags mirrors the libmdbx/LMDB sub-database flags spec §4.4 derives
// per index. DupSort is the odd one out on a backend without native
// duplicate-key support: implementations emulate it with a composite
// secondaryKey||primaryKey physical key (spec §4.4's "Composite key
// emulation" note).
type SubDBFlags uint8

const (
	Create SubDBFlags = 1 << iota
	DupSort
	IntegerKey
	ReverseKey
	DupFixed
	IntegerDup
	ReverseDup
)

func (f SubDBFlags) Has(bit SubDBFlags) bool { return f&bit != 0 }

// PutFlags mirrors the libmdbx/LMDB put-time flags spec §6 references.
type PutFlags uint8

const (
	NoOverwrite PutFlags = 1 << iota
	NoDupData
	Current
)

func (f PutFlags) Has(bit PutFlags) bool { return f&bit != 0 }

// Op is a cursor positioning opcode (spec §4.6's opcode table).
type Op int

const (
	OpFirst Op = iota
	OpLast
	OpNext
	OpPrev
	OpNextNoDup
	OpPrevNoDup
	OpNextDup
	OpPrevDup
	OpSetRange
	OpSet
	OpGetBoth
	OpGetBothRange
	OpGetCurrent
)

// KV is an open embedded store: one physical file holding many named
// sub-databases.
type KV interface {
	Begin(writable bool) (Txn, error)
	Batch(fn func(Txn) error) error
	Close() error
	Size() int64
}

// Txn is a single transaction over the store. Read transactions see an
// isolated MVCC snapshot; write transactions are always solitary.
type Txn interface {
	Writable() bool

	// SubDB opens (creating if flags.Has(Create)) the named sub-database.
	SubDB(name string, flags SubDBFlags) (SubDB, error)

	// DropSubDB deletes a sub-database and all its contents.
	DropSubDB(name string) error

	Commit() error
	Rollback() error
}

// SubDB is one named table of sorted keys inside a transaction.
type SubDB interface {
	Flags() SubDBFlags

	// Get returns the value for key, or nil if absent. Under DupSort this
	// returns the first duplicate's value.
	Get(key []byte) ([]byte, error)

	// Put stores key/value honoring flags. Under DupSort with NoDupData the
	// exact (key, value) pair must not already exist.
	Put(key, value []byte, flags PutFlags) error

	// Delete removes key (and, under DupSort, all its duplicates).
	Delete(key []byte) error

	// DeleteExact removes a single (key, value) duplicate under DupSort.
	DeleteExact(key, value []byte) error

	Cursor() (Cursor, error)

	KeyCount() int64
}

// Cursor drives sequential and positional access to a SubDB. Get implements
// the opcode dispatch described by spec §4.6: key/value are the seek/match
// operands the opcode consults (e.g. OpSetRange reads key, OpGetBothRange
// reads both).
type Cursor interface {
	Get(op Op, key, value []byte) (k, v []byte, err error)

	// Put positions-and-writes in one call (with Current, over the pair the
	// cursor sits on). The fpta package does not call it: its cursor updates
	// write through SubDB.Put.
	Put(key, value []byte, flags PutFlags) error

	// Delete removes the pair the cursor currently sits on.
	Delete() error

	Close() error
}
